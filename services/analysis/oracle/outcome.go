package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
)

// OutcomeKind is the tagged classification of one oracle exchange.
// Every call terminates in exactly one of these; callers dispatch on
// the kind instead of inspecting errors.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeThrottled
	OutcomeUnauthorized
	OutcomeUnavailable
)

// String returns the lowercase kind name, used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "unavailable"
	}
}

// Retryable reports whether a retry could plausibly change the kind.
// Throttling and outages are transient; bad credentials are not.
func (k OutcomeKind) Retryable() bool {
	return k == OutcomeThrottled || k == OutcomeUnavailable
}

// UserMessage returns the reader-facing explanation recorded alongside
// fallback results for each failure class. Success has no message.
func (k OutcomeKind) UserMessage() string {
	switch k {
	case OutcomeThrottled:
		return "The AI security analysis service is experiencing high demand. " +
			"A rule-based analysis is provided instead; resubmit the diagram shortly for a full AI review."
	case OutcomeUnauthorized:
		return "The AI security analysis service rejected this deployment's credentials. " +
			"A rule-based analysis is provided instead; verify the oracle API key configuration."
	case OutcomeUnavailable:
		return "The AI security analysis service is temporarily unavailable. " +
			"A rule-based analysis is provided instead; resubmit the diagram to retry the full AI review."
	default:
		return ""
	}
}

// Outcome is the terminal result of one oracle exchange including
// retries. Results is non-nil exactly when Kind is OutcomeSuccess;
// otherwise Err holds the last failure.
type Outcome struct {
	Kind     OutcomeKind
	Results  *datatypes.AnalysisResults
	Err      error
	Attempts int
}

var throttleMarkers = []string{
	"throttl", "rate limit", "rate_limit", "too many requests", "quota", "429",
}

var authMarkers = []string{
	"unauthorized", "access", "authorization", "permission",
	"invalid api key", "authentication", "401", "403",
}

// Classify maps a transport error to an outcome kind.
//
// Backends wrap heterogeneous SDK and HTTP errors, so classification
// goes by message content: throttling markers first, then credential
// markers, and anything unrecognized (including timeouts) counts as
// the service being unavailable.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeUnavailable
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return OutcomeThrottled
		}
	}
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return OutcomeUnauthorized
		}
	}
	return OutcomeUnavailable
}
