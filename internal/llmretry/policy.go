package llmretry

import (
	"math/rand/v2"
	"time"
)

// Policy decides retry eligibility and backoff for one class of
// operations. All bounds come from configuration; a zero Policy is not
// usable, construct with DefaultPolicy or from config values.
type Policy struct {
	MinAttempts      int // always allowed, regardless of kind
	GlobalCap        int // Network/Unknown/TokenLimit retry up to here
	JSONCap          int // malformed output is cheap, allow more
	ModelCap         int // model behavior errors rarely self-correct
	RateLimitCeiling int // max consecutive rate-limit failures

	BackoffBase    time.Duration
	BackoffPenalty time.Duration
	BackoffCap     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MinAttempts:      3,
		GlobalCap:        5,
		JSONCap:          8,
		ModelCap:         3,
		RateLimitCeiling: 5,
		BackoffBase:      1 * time.Second,
		BackoffPenalty:   500 * time.Millisecond,
		BackoffCap:       60 * time.Second,
	}
}

// State tracks retry progress for one logical operation. It lives for the
// duration of that operation and is discarded on completion.
type State struct {
	Attempt             int
	ConsecutiveFailures int
	LastKind            Kind
}

// RecordFailure advances the state after a failed attempt. Consecutive
// failures reset when the kind changes, so distinct failure modes do not
// compound each other's penalties.
func (s *State) RecordFailure(kind Kind) {
	s.Attempt++
	if kind == s.LastKind {
		s.ConsecutiveFailures++
	} else {
		s.ConsecutiveFailures = 1
	}
	s.LastKind = kind
}

// ShouldRetry reports whether another attempt is allowed after the
// failure recorded in state.
func (p Policy) ShouldRetry(s State) bool {
	if s.Attempt < p.MinAttempts {
		return true
	}
	switch s.LastKind {
	case KindJSONParse:
		return s.Attempt < p.JSONCap
	case KindModel:
		return s.Attempt < p.ModelCap
	case KindRateLimit:
		return s.Attempt < p.GlobalCap && s.ConsecutiveFailures < p.RateLimitCeiling
	default:
		// Network, TokenLimit, Unknown.
		return s.Attempt < p.GlobalCap
	}
}

// Delay is the deterministic backoff curve: base * 2^attempt plus a
// linear consecutive-failure penalty, capped.
func (p Policy) Delay(attempt, consecutiveFailures int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := p.BackoffBase<<uint(attempt) + time.Duration(consecutiveFailures)*p.BackoffPenalty
	if d > p.BackoffCap {
		d = p.BackoffCap
	}
	return d
}

// Backoff applies mandatory +-30% jitter to Delay so concurrent callers
// never synchronize their retry storms. Never exceeds the cap.
func (p Policy) Backoff(attempt, consecutiveFailures int) time.Duration {
	d := p.Delay(attempt, consecutiveFailures)
	jittered := time.Duration(float64(d) * (0.7 + 0.6*rand.Float64()))
	if jittered > p.BackoffCap {
		jittered = p.BackoffCap
	}
	return jittered
}
