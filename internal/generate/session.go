package generate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Usage totals accumulated from terminal stream metadata.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Turn is the accumulated result of one streaming call: text deltas
// joined in arrival order, tool calls with their full input, and the
// assistant message to append back into the conversation.
type Turn struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
	Assistant  anthropic.MessageParam
}

// Session is one conversation with the model. The interface exists so
// the generation state machine is testable without the SDK.
type Session interface {
	Stream(ctx context.Context, system string, messages []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (*Turn, error)
}

// claudeSession implements Session on the Anthropic streaming API.
type claudeSession struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeSession builds a Session backed by the Messages streaming
// endpoint.
func NewClaudeSession(apiKey, model string, maxTokens int64) Session {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &claudeSession{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (s *claudeSession) Stream(ctx context.Context, system string, messages []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (*Turn, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages:  messages,
		Tools:     tools,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := s.client.Messages.NewStreaming(ctx, params)
	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream event: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	turn := &Turn{
		StopReason: string(message.StopReason),
		Usage: Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
		Assistant: message.ToParam(),
	}
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Text += b.Text
		case anthropic.ToolUseBlock:
			// Input representation varies across SDK versions; marshal
			// round-trips RawMessage unchanged and normalizes the rest.
			raw, err := json.Marshal(b.Input)
			if err != nil {
				return nil, fmt.Errorf("encode tool input: %w", err)
			}
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: raw,
			})
		}
	}
	return turn, nil
}
