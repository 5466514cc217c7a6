package budget

import "unicode/utf8"

// TruncationMarker is appended to any content cut by Truncate.
const TruncationMarker = "\n[truncated]"

// Estimator approximates token counts from character length. Exact
// tokenization is not required anywhere in the pipeline; the ratio is
// configuration and content-dependent.
type Estimator struct {
	CharsPerToken float64
}

// DefaultCharsPerToken works well for mixed code and prose.
const DefaultCharsPerToken = 2.5

func NewEstimator(charsPerToken float64) Estimator {
	if charsPerToken < 1 {
		charsPerToken = DefaultCharsPerToken
	}
	return Estimator{CharsPerToken: charsPerToken}
}

// Estimate returns floor(len(text)/charsPerToken). Monotonic
// non-decreasing in the length of text.
func (e Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(len(text)) / e.CharsPerToken)
}

// Truncate hard-cuts content at maxTokens worth of characters and appends
// the truncation marker. Content already within budget passes through
// untouched. The cut backs off to a valid UTF-8 boundary.
func (e Estimator) Truncate(content string, maxTokens int) string {
	if maxTokens <= 0 {
		return TruncationMarker
	}
	limit := int(float64(maxTokens) * e.CharsPerToken)
	if len(content) <= limit {
		return content
	}
	cut := content[:limit]
	for i := 0; i < 4 && len(cut) > 0; i++ {
		if utf8.ValidString(cut) {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut + TruncationMarker
}

// Available computes the usable token budget for one call: the context
// window minus every reserved slot, capped at 70% of the window so a
// single input can never starve the model's working room.
func Available(contextWindow int, reserved ...int) int {
	sum := 0
	for _, r := range reserved {
		sum += r
	}
	avail := contextWindow - sum
	if cap70 := contextWindow * 7 / 10; avail > cap70 {
		avail = cap70
	}
	if avail < 0 {
		avail = 0
	}
	return avail
}

// ShrinkForAttempt reduces an allowed budget after a token-limit failure:
// the next attempt gets the budget divided by attempt+1.
func ShrinkForAttempt(maxTokens, attempt int) int {
	if attempt < 0 {
		attempt = 0
	}
	shrunk := maxTokens / (attempt + 1)
	if shrunk < 1 {
		shrunk = 1
	}
	return shrunk
}
