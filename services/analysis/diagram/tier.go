// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

// DetailTier classifies how much usable detail a diagram contains.
//
// The tier is computed exactly once per analysis, from the classified
// service count, and threaded through both the description generator
// and the fallback scorer. Keeping it a single value is what
// guarantees the description and the score can never contradict each
// other (a "no services detected" description with a rich score, or
// vice versa).
type DetailTier int

const (
	// TierEmpty: zero classified services.
	TierEmpty DetailTier = iota

	// TierMinimal: one or two classified services.
	TierMinimal

	// TierRich: three or more classified services.
	TierRich
)

// TierForCount maps a classified-service count to its tier.
func TierForCount(classified int) DetailTier {
	switch {
	case classified <= 0:
		return TierEmpty
	case classified <= 2:
		return TierMinimal
	default:
		return TierRich
	}
}

// String returns "EMPTY", "MINIMAL", or "RICH".
func (t DetailTier) String() string {
	switch t {
	case TierEmpty:
		return "EMPTY"
	case TierMinimal:
		return "MINIMAL"
	case TierRich:
		return "RICH"
	default:
		return "UNKNOWN"
	}
}
