package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/alexchenyu/OpenDeepWiki/internal/budget"
	"github.com/alexchenyu/OpenDeepWiki/internal/llmretry"
	"github.com/alexchenyu/OpenDeepWiki/internal/store"
)

// state names the positions of the generation state machine; they appear
// in logs only.
type state string

const (
	stateInit      state = "init"
	stateStreaming state = "streaming_attempt"
	stateContent   state = "content_available"
	stateEmpty     state = "empty_response"
	stateRefine    state = "refinement"
	stateParsed    state = "parsed"
	stateFailed    state = "failed"
)

// Options tune one Stage. Zero values are not usable; wire from config.
type Options struct {
	FirstAttemptTimeout time.Duration
	LaterAttemptTimeout time.Duration
	MaxStreamTurns      int
	WriteToolCap        int
	MaxReadTokens       int
	Estimator           budget.Estimator
}

// Request identifies the repository a catalogue is generated for.
type Request struct {
	RepoID    string
	RepoName  string
	Root      string // filesystem root the read_file tool resolves against
	Structure string // rendered repository structure for the prompt
}

// Result is the structured outcome of a generation run. Failed results
// carry a diagnostic instead of an error so the orchestrator never sees
// a bare failure.
type Result struct {
	Catalogue    *Catalogue
	Entries      []store.CatalogEntry
	Usage        Usage
	Invocations  int
	Failed       bool
	ErrorMessage string
}

// Stage runs catalogue generation: a conversation with the model under
// per-attempt timeouts, wrapped in the retry policy.
type Stage struct {
	session Session
	policy  llmretry.Policy
	opts    Options
	logger  *slog.Logger
}

func NewStage(session Session, policy llmretry.Policy, opts Options, logger *slog.Logger) *Stage {
	if opts.MaxStreamTurns <= 0 {
		opts.MaxStreamTurns = 12
	}
	return &Stage{session: session, policy: policy, opts: opts, logger: logger}
}

// Run generates the catalogue for one repository. The outer loop retries
// whole invocations per the policy; the inner loop is the streaming
// conversation of a single invocation.
func (s *Stage) Run(ctx context.Context, req Request) *Result {
	result := &Result{}
	var retry llmretry.State
	baseStructure := req.Structure
	readTokens := s.opts.MaxReadTokens
	shrinks := 0

	for {
		result.Invocations++
		cat, usage, err := s.invoke(ctx, req, readTokens)
		result.Usage.Add(usage)
		if err == nil {
			result.Catalogue = cat
			result.Entries = cat.Flatten(req.RepoID)
			s.logger.Info("catalogue generated",
				"repo", req.RepoName,
				"state", stateParsed,
				"entries", len(result.Entries),
				"invocations", result.Invocations,
				"input_tokens", result.Usage.InputTokens,
				"output_tokens", result.Usage.OutputTokens)
			return result
		}

		kind := llmretry.Classify(err)
		retry.RecordFailure(kind)
		s.logger.Warn("catalogue invocation failed",
			"repo", req.RepoName,
			"kind", string(kind),
			"outer_attempt", retry.Attempt,
			"consecutive", retry.ConsecutiveFailures,
			"error", err)

		if ctx.Err() != nil || !s.policy.ShouldRetry(retry) {
			result.Failed = true
			result.ErrorMessage = fmt.Sprintf("catalogue generation failed after %d invocations (%s): %v",
				retry.Attempt, kind, err)
			s.logger.Error("catalogue generation terminal",
				"repo", req.RepoName, "state", stateFailed, "error", result.ErrorMessage)
			return result
		}

		if kind == llmretry.KindTokenLimit {
			// Contract the budgets so the next invocation fits: the
			// read tool allowance and the structure prompt both shrink.
			shrinks++
			readTokens = budget.ShrinkForAttempt(s.opts.MaxReadTokens, shrinks)
			structTokens := budget.ShrinkForAttempt(s.opts.Estimator.Estimate(baseStructure), shrinks)
			req.Structure = s.opts.Estimator.Truncate(baseStructure, structTokens)
			s.logger.Info("shrinking budgets after token limit",
				"repo", req.RepoName,
				"read_tokens", readTokens,
				"structure_tokens", structTokens)
		}

		delay := s.policy.Backoff(retry.Attempt, retry.ConsecutiveFailures)
		s.logger.Info("backing off before next invocation", "repo", req.RepoName, "delay", delay)
		select {
		case <-ctx.Done():
			result.Failed = true
			result.ErrorMessage = fmt.Sprintf("canceled during backoff: %v", ctx.Err())
			return result
		case <-time.After(delay):
		}
	}
}

// invoke is one complete conversation: stream, execute tools, repeat
// until the model hands back content or the turn budget runs out.
func (s *Stage) invoke(ctx context.Context, req Request, readTokens int) (*Catalogue, Usage, error) {
	var usage Usage
	toolbox := NewToolbox(req.Root, s.opts.Estimator, readTokens, s.opts.WriteToolCap, s.logger)
	tools := toolDefinitions()
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(req.RepoName, req.Structure))),
	}
	s.logger.Debug("invocation start", "repo", req.RepoName, "state", stateInit)

	emptyStreak := 0
	refined := false

	for turnNo := 1; turnNo <= s.opts.MaxStreamTurns; turnNo++ {
		timeout := s.opts.LaterAttemptTimeout
		if turnNo == 1 {
			timeout = s.opts.FirstAttemptTimeout
		}
		s.logger.Debug("streaming turn", "repo", req.RepoName, "state", stateStreaming, "turn", turnNo, "timeout", timeout)

		turnCtx, cancel := context.WithTimeout(ctx, timeout)
		turn, err := s.session.Stream(turnCtx, systemPrompt, messages, tools)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				// Caller cancellation, not a turn timeout.
				return nil, usage, ctx.Err()
			}
			return nil, usage, err
		}
		usage.Add(turn.Usage)

		if len(turn.ToolCalls) > 0 {
			emptyStreak = 0
			messages = append(messages, turn.Assistant)
			var results []anthropic.ContentBlockParamUnion
			for _, call := range turn.ToolCalls {
				out, err := toolbox.Execute(call)
				if err != nil {
					s.logger.Debug("tool call rejected", "tool", call.Name, "error", err)
					results = append(results, anthropic.NewToolResultBlock(call.ID, "Error: "+err.Error(), true))
				} else {
					results = append(results, anthropic.NewToolResultBlock(call.ID, out, false))
				}
			}
			messages = append(messages, anthropic.NewUserMessage(results...))
			continue
		}

		buffer := toolbox.Document()
		if strings.TrimSpace(buffer) == "" {
			buffer = turn.Text
		}
		if strings.TrimSpace(buffer) == "" {
			emptyStreak++
			s.logger.Debug("empty turn", "repo", req.RepoName, "state", stateEmpty, "streak", emptyStreak)
			if emptyStreak >= 2 {
				if refined {
					return nil, usage, llmretry.NewError(llmretry.KindModel, "generate catalogue",
						errors.New("empty responses persisted after refinement"))
				}
				s.logger.Debug("issuing refinement", "repo", req.RepoName, "state", stateRefine)
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(refinementPrompt)))
				refined = true
				continue
			}
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock("Continue.")))
			continue
		}

		s.logger.Debug("content available", "repo", req.RepoName, "state", stateContent, "bytes", len(buffer))
		cat, err := ExtractStructure(buffer)
		if err != nil {
			return nil, usage, err
		}
		return cat, usage, nil
	}

	return nil, usage, llmretry.NewError(llmretry.KindModel, "generate catalogue",
		fmt.Errorf("no structure after %d streaming turns", s.opts.MaxStreamTurns))
}
