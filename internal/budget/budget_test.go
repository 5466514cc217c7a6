package budget

import (
	"strings"
	"testing"
)

func TestEstimate_Monotonic(t *testing.T) {
	e := NewEstimator(2.5)
	prev := -1
	text := ""
	for i := 0; i < 500; i++ {
		text += "a"
		got := e.Estimate(text)
		if got < prev {
			t.Fatalf("estimate decreased at length %d: %d < %d", i+1, got, prev)
		}
		prev = got
	}
}

func TestEstimate_Ratio(t *testing.T) {
	e := NewEstimator(2.5)
	if got := e.Estimate(strings.Repeat("x", 250)); got != 100 {
		t.Errorf("expected 100 tokens for 250 chars at 2.5, got %d", got)
	}
	if got := e.Estimate(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
}

func TestTruncate_WithinBudgetIsNoop(t *testing.T) {
	e := NewEstimator(2.5)
	content := "short content"
	if got := e.Truncate(content, 1000); got != content {
		t.Errorf("expected no-op, got %q", got)
	}
}

func TestTruncate_MillionChars(t *testing.T) {
	// Scenario: 1,000,000 chars, charsPerToken=2.5, maxTokens=100.
	e := NewEstimator(2.5)
	content := strings.Repeat("a", 1_000_000)
	got := e.Truncate(content, 100)

	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("expected truncation marker suffix")
	}
	body := strings.TrimSuffix(got, TruncationMarker)
	if len(body) > 250 {
		t.Errorf("expected at most 250 chars of content, got %d", len(body))
	}

	// estimate(truncate(content, max)) <= max plus small marker overshoot.
	markerTokens := e.Estimate(TruncationMarker) + 1
	if est := e.Estimate(got); est > 100+markerTokens {
		t.Errorf("estimate of truncated content %d exceeds budget %d + marker %d", est, 100, markerTokens)
	}
}

func TestTruncate_UTF8Boundary(t *testing.T) {
	e := NewEstimator(1)
	content := strings.Repeat("日", 100)
	got := e.Truncate(content, 10)
	body := strings.TrimSuffix(got, TruncationMarker)
	if !strings.HasPrefix(content, body) {
		t.Errorf("truncated body is not a prefix of the original")
	}
	for _, r := range body {
		if r != '日' {
			t.Fatalf("corrupted rune %q in truncated output", r)
		}
	}
}

func TestAvailable_Caps(t *testing.T) {
	// Small reservations: capped at 70% of the window.
	if got := Available(1000, 10, 10); got != 700 {
		t.Errorf("expected 70%% cap of 700, got %d", got)
	}
	// Large reservations dominate.
	if got := Available(1000, 400, 300); got != 300 {
		t.Errorf("expected 300 after reservations, got %d", got)
	}
	// Over-reservation clamps at zero.
	if got := Available(1000, 600, 600); got != 0 {
		t.Errorf("expected 0 for over-reserved window, got %d", got)
	}
}

func TestShrinkForAttempt(t *testing.T) {
	cases := []struct {
		max, attempt, want int
	}{
		{1000, 0, 1000},
		{1000, 1, 500},
		{1000, 2, 333},
		{1000, 3, 250},
		{1, 9, 1},
	}
	for _, c := range cases {
		if got := ShrinkForAttempt(c.max, c.attempt); got != c.want {
			t.Errorf("ShrinkForAttempt(%d, %d) = %d, want %d", c.max, c.attempt, got, c.want)
		}
	}
}
