package llmretry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Kind is the failure taxonomy used by every retry-aware component.
type Kind string

const (
	KindNetwork    Kind = "network"     // transient transport failure
	KindRateLimit  Kind = "rate_limit"  // throttled by a dependency
	KindJSONParse  Kind = "json_parse"  // malformed model output
	KindModel      Kind = "model"       // model behavior error
	KindTokenLimit Kind = "token_limit" // token budget exceeded
	KindUnknown    Kind = "unknown"
)

// Error is a classified failure produced at the failure site. Components
// that can tell what went wrong wrap their errors in one of these so the
// classifier never has to sniff their messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with an explicit kind.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify maps an arbitrary failure onto the taxonomy. Structural type
// checks come first; message-content heuristics are a last resort for
// opaque third-party errors and live only here, so swapping the heuristic
// never touches call sites.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return KindRateLimit
		case apiErr.StatusCode == 413:
			return KindTokenLimit
		case apiErr.StatusCode >= 500:
			return KindNetwork
		case apiErr.StatusCode >= 400:
			return classifyMessage(err.Error())
		}
	}

	var jsonSyntax *json.SyntaxError
	var jsonType *json.UnmarshalTypeError
	if errors.As(err, &jsonSyntax) || errors.As(err, &jsonType) {
		return KindJSONParse
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	return classifyMessage(err.Error())
}

// classifyMessage is the message-sniffing fallback.
func classifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "prompt is too long"),
		strings.Contains(lower, "maximum context length"),
		strings.Contains(lower, "token limit"),
		strings.Contains(lower, "exceeds the maximum number of tokens"):
		return KindTokenLimit
	case strings.Contains(lower, "rate"),
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "429"),
		strings.Contains(lower, "too many requests"):
		return KindRateLimit
	case strings.Contains(lower, "json"),
		strings.Contains(lower, "unmarshal"),
		strings.Contains(lower, "unexpected end of"):
		return KindJSONParse
	case strings.Contains(lower, "connection"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "eof"):
		return KindNetwork
	case strings.Contains(lower, "model"),
		strings.Contains(lower, "overloaded"):
		return KindModel
	default:
		return KindUnknown
	}
}
