package llmretry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassify_TypedErrorWinsOverMessage(t *testing.T) {
	// The message mentions "rate" but the typed kind must win.
	err := NewError(KindModel, "generate", errors.New("rate of output was suspicious"))
	if got := Classify(err); got != KindModel {
		t.Errorf("expected model, got %s", got)
	}
	// Typed errors survive wrapping.
	wrapped := fmt.Errorf("outer: %w", err)
	if got := Classify(wrapped); got != KindModel {
		t.Errorf("expected model through wrapping, got %s", got)
	}
}

func TestClassify_StructuralTypes(t *testing.T) {
	var syntaxTarget struct{ X int }
	jsonErr := json.Unmarshal([]byte("{not json"), &syntaxTarget)
	if jsonErr == nil {
		t.Fatal("expected json error")
	}
	if got := Classify(jsonErr); got != KindJSONParse {
		t.Errorf("json syntax error: expected json_parse, got %s", got)
	}
	if got := Classify(context.DeadlineExceeded); got != KindNetwork {
		t.Errorf("deadline: expected network, got %s", got)
	}
}

func TestClassify_MessageFallback(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"429 Too Many Requests", KindRateLimit},
		{"quota exhausted for this project", KindRateLimit},
		{"prompt is too long: 250000 tokens", KindTokenLimit},
		{"connection refused", KindNetwork},
		{"request timed out", KindNetwork},
		{"model produced an invalid stop sequence", KindModel},
		{"something inexplicable", KindUnknown},
	}
	for _, c := range cases {
		if got := Classify(errors.New(c.msg)); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.msg, got, c.want)
		}
	}
}

func TestShouldRetry_MinimumAttempts(t *testing.T) {
	p := DefaultPolicy()
	s := State{}
	// Even a model error gets the minimum number of attempts.
	s.RecordFailure(KindModel)
	if !p.ShouldRetry(s) {
		t.Fatal("attempt 1: expected retry")
	}
	s.RecordFailure(KindModel)
	if !p.ShouldRetry(s) {
		t.Fatal("attempt 2: expected retry")
	}
}

func TestShouldRetry_NetworkToGlobalCap_ModelStopsEarlier(t *testing.T) {
	p := DefaultPolicy()

	net := State{}
	netAttempts := 0
	for {
		net.RecordFailure(KindNetwork)
		netAttempts++
		if !p.ShouldRetry(net) {
			break
		}
	}
	if netAttempts != p.GlobalCap {
		t.Errorf("network: expected %d attempts, got %d", p.GlobalCap, netAttempts)
	}

	model := State{}
	modelAttempts := 0
	for {
		model.RecordFailure(KindModel)
		modelAttempts++
		if !p.ShouldRetry(model) {
			break
		}
	}
	if modelAttempts >= netAttempts {
		t.Errorf("model errors should stop strictly before the global cap: model=%d network=%d",
			modelAttempts, netAttempts)
	}
}

func TestShouldRetry_JSONParseGetsHigherCap(t *testing.T) {
	p := DefaultPolicy()
	s := State{}
	attempts := 0
	for {
		s.RecordFailure(KindJSONParse)
		attempts++
		if !p.ShouldRetry(s) {
			break
		}
	}
	if attempts != p.JSONCap {
		t.Errorf("json_parse: expected %d attempts, got %d", p.JSONCap, attempts)
	}
	if p.JSONCap <= p.GlobalCap {
		t.Errorf("json cap %d should exceed global cap %d", p.JSONCap, p.GlobalCap)
	}
}

func TestShouldRetry_RateLimitSecondaryCeiling(t *testing.T) {
	// Scenario: 6 consecutive rate-limit failures, ceiling 5. The 6th
	// attempt must not be retried; the operation ends in terminal failure.
	p := DefaultPolicy()
	p.GlobalCap = 20 // the ceiling, not the cap, must stop this run
	p.RateLimitCeiling = 5

	s := State{}
	for i := 0; i < 6; i++ {
		s.RecordFailure(KindRateLimit)
	}
	if p.ShouldRetry(s) {
		t.Fatal("after 6 consecutive rate-limit failures the operation must be terminal")
	}
}

func TestShouldRetry_ConsecutiveResetOnKindChange(t *testing.T) {
	s := State{}
	for i := 0; i < 4; i++ {
		s.RecordFailure(KindRateLimit)
	}
	s.RecordFailure(KindNetwork)
	if s.ConsecutiveFailures != 1 {
		t.Errorf("expected consecutive failures to reset on kind change, got %d", s.ConsecutiveFailures)
	}
}

func TestDelay_NonDecreasingAndCapped(t *testing.T) {
	p := DefaultPolicy()
	prev := time.Duration(0)
	for attempt := 0; attempt < 40; attempt++ {
		d := p.Delay(attempt, 2)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > p.BackoffCap {
			t.Fatalf("delay %v exceeds cap %v", d, p.BackoffCap)
		}
		prev = d
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	p := DefaultPolicy()
	for i := 0; i < 200; i++ {
		d := p.Delay(3, 2)
		b := p.Backoff(3, 2)
		lo := time.Duration(float64(d) * 0.7)
		hi := time.Duration(float64(d) * 1.3)
		if b < lo || b > hi {
			t.Fatalf("jittered backoff %v outside [%v, %v]", b, lo, hi)
		}
		if b > p.BackoffCap {
			t.Fatalf("jittered backoff %v exceeds cap", b)
		}
	}
}
