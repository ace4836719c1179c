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

import "strings"

// =============================================================================
// Classification Types
// =============================================================================

// Confidence ranks how a node was matched. Higher is stronger.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceStyle
	ConfidenceKeyword
	ConfidenceExact
)

// String returns "none", "style", "keyword", or "exact".
func (c Confidence) String() string {
	switch c {
	case ConfidenceExact:
		return "exact"
	case ConfidenceKeyword:
		return "keyword"
	case ConfidenceStyle:
		return "style"
	default:
		return "none"
	}
}

// Classification is the outcome of classifying one (label, style)
// pair.
//
// Service and ServiceName are empty for generic matches: a label like
// "Database Server" resolves to the database category via a generic
// keyword without naming a concrete service. The description
// generator words these differently ("generic component" vs. a named
// service).
type Classification struct {
	Category    Category   `json:"category"`
	Service     string     `json:"service,omitempty"`
	ServiceName string     `json:"service_name,omitempty"`
	Confidence  Confidence `json:"-"`
}

// Classified reports whether the node resolved to a real category.
func (c Classification) Classified() bool {
	return c.Category != CategoryUnclassified
}

// Generic reports whether the node matched only a generic category
// keyword, with no concrete service identified.
func (c Classification) Generic() bool {
	return c.Classified() && c.Service == ""
}

// ServiceMatch pairs a node with its classification.
type ServiceMatch struct {
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
	Classification
}

// =============================================================================
// Classifier
// =============================================================================

// Classify resolves a single (label, style) pair against the catalog.
//
// Matching precedence, first hit wins:
//
//  1. exact: the whole normalized label equals a cataloged service name
//  2. keyword: the label contains a service keyword, or failing that,
//     a generic category keyword
//  3. style: the style string contains a cataloged style token
//  4. none: unclassified
//
// Classify is a pure function of (label, style) and the catalog:
// no ordering dependence between nodes, no randomness. Catalog
// declaration order breaks ties within each precedence level.
func (cat *Catalog) Classify(label, style string) Classification {
	norm := normalizeLabel(label)

	if norm != "" {
		if entry, ok := cat.exactIndex[norm]; ok {
			return Classification{
				Category:    entry.Category,
				Service:     entry.ID,
				ServiceName: entry.DisplayName,
				Confidence:  ConfidenceExact,
			}
		}

		for i := range cat.Services {
			entry := &cat.Services[i]
			for _, kw := range entry.Keywords {
				if strings.Contains(norm, kw) {
					return Classification{
						Category:    entry.Category,
						Service:     entry.ID,
						ServiceName: entry.DisplayName,
						Confidence:  ConfidenceKeyword,
					}
				}
			}
		}

		for _, gk := range cat.GenericKeywords {
			if strings.Contains(norm, gk.Keyword) {
				return Classification{
					Category:   gk.Category,
					Confidence: ConfidenceKeyword,
				}
			}
		}
	}

	if styleNorm := strings.ToLower(style); styleNorm != "" {
		for i := range cat.Services {
			entry := &cat.Services[i]
			for _, token := range entry.Styles {
				if strings.Contains(styleNorm, token) {
					return Classification{
						Category:    entry.Category,
						Service:     entry.ID,
						ServiceName: entry.DisplayName,
						Confidence:  ConfidenceStyle,
					}
				}
			}
		}
	}

	return Classification{Category: CategoryUnclassified, Confidence: ConfidenceNone}
}

// =============================================================================
// Graph Classification Summary
// =============================================================================

// Summary is the classified view of a whole graph, plus the tier
// derived from it. It is the input to pattern detection, description
// generation, and fallback scoring.
type Summary struct {
	// Matches holds one entry per node, in document order.
	Matches []ServiceMatch

	// ServiceCounts counts nodes per canonical service id. Generic
	// matches do not appear here.
	ServiceCounts map[string]int

	// CategoryCounts counts classified nodes per category.
	CategoryCounts map[Category]int

	// ClassifiedCount is the number of nodes with a real category.
	ClassifiedCount int

	// Tier is derived from ClassifiedCount and governs all downstream
	// depth decisions.
	Tier DetailTier
}

// ClassifyGraph classifies every node of g against the catalog.
func (cat *Catalog) ClassifyGraph(g *Graph) *Summary {
	s := &Summary{
		Matches:        make([]ServiceMatch, 0, len(g.Nodes)),
		ServiceCounts:  make(map[string]int),
		CategoryCounts: make(map[Category]int),
	}

	for _, node := range g.Nodes {
		cls := cat.Classify(node.Label, node.Style)
		s.Matches = append(s.Matches, ServiceMatch{
			NodeID:         node.ID,
			Label:          node.Label,
			Classification: cls,
		})
		if !cls.Classified() {
			continue
		}
		s.ClassifiedCount++
		s.CategoryCounts[cls.Category]++
		if cls.Service != "" {
			s.ServiceCounts[cls.Service]++
		}
	}

	s.Tier = TierForCount(s.ClassifiedCount)
	return s
}

// Match returns the classification for a node id, or false.
func (s *Summary) Match(nodeID string) (ServiceMatch, bool) {
	for _, m := range s.Matches {
		if m.NodeID == nodeID {
			return m, true
		}
	}
	return ServiceMatch{}, false
}

// MatchesInCategory returns the matches of one category, in document
// order.
func (s *Summary) MatchesInCategory(cat Category) []ServiceMatch {
	var out []ServiceMatch
	for _, m := range s.Matches {
		if m.Category == cat {
			out = append(out, m)
		}
	}
	return out
}

// HasService reports whether any node resolved to the given canonical
// service id.
func (s *Summary) HasService(id string) bool {
	return s.ServiceCounts[id] > 0
}
