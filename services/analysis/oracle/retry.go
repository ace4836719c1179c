package oracle

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy controls the retry schedule for oracle exchanges.
//
// MaxRetries counts additional attempts after the first, so the total
// attempt ceiling is MaxRetries+1. The default policy allows a single
// retry: a second failure is a strong signal the problem is not
// transient, and the caller has a deterministic fallback ready.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy returns the production schedule: one retry, ten-second
// base backoff.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 1, BaseDelay: 10 * time.Second}
}

// delay computes the exponential backoff for an attempt index, plus
// jitter so synchronized workers do not retry in lockstep.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	return d + rand.N(p.BaseDelay/2+1)
}

// Invoke runs one full oracle exchange under the policy and returns
// its terminal outcome.
//
// Throttled and unavailable outcomes are retried up to the policy
// ceiling; unauthorized is terminal immediately, since retrying bad
// credentials only burns quota. An empty or unparsable response body
// counts as unavailable: from the caller's perspective a service
// returning garbage is down.
//
// Invoke never panics across the boundary and never returns a
// half-populated Outcome: Results is set exactly on success.
func Invoke(ctx context.Context, o Oracle, req Request, p Policy) Outcome {
	for attempt := 0; ; attempt++ {
		raw, err := o.Analyze(ctx, req)

		var kind OutcomeKind
		if err != nil {
			kind = Classify(err)
		} else {
			results, perr := ParseResults(raw)
			if perr == nil {
				return Outcome{Kind: OutcomeSuccess, Results: results, Attempts: attempt + 1}
			}
			err = perr
			kind = OutcomeUnavailable
		}

		if !kind.Retryable() || attempt >= p.MaxRetries {
			return Outcome{Kind: kind, Err: err, Attempts: attempt + 1}
		}

		delay := p.delay(attempt)
		slog.Warn("Oracle call failed, retrying",
			"outcome", kind.String(), "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Outcome{Kind: OutcomeUnavailable, Err: ctx.Err(), Attempts: attempt + 1}
		}
	}
}
