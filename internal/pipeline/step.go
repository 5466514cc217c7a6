package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// StepResult is the outcome of one pipeline step. Canceled is set only
// when the caller's context ended the step; a step timing out on its own
// deadline reports failure without Canceled.
type StepResult struct {
	Name         string        `json:"name"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
	Canceled     bool          `json:"canceled,omitempty"`

	err error
}

// Err returns the underlying step error, nil on success.
func (r StepResult) Err() error { return r.err }

// RunStep executes fn under its own deadline derived from ctx. A zero or
// negative timeout means no extra deadline. Failures come back as a
// result, never a panic.
func RunStep(ctx context.Context, log *slog.Logger, name string, timeout time.Duration, fn func(ctx context.Context) error) StepResult {
	stepCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	log.Info("step start", "step", name, "timeout", timeout)
	err := fn(stepCtx)
	result := StepResult{
		Name:     name,
		Duration: time.Since(start),
	}
	switch {
	case err == nil:
		result.Success = true
		log.Info("step done", "step", name, "duration", result.Duration)
	case ctx.Err() != nil:
		// Caller cancellation, distinct from a step timeout.
		result.Canceled = true
		result.err = ctx.Err()
		result.ErrorMessage = fmt.Sprintf("step %s canceled: %v", name, ctx.Err())
		log.Warn("step canceled", "step", name, "duration", result.Duration)
	case errors.Is(err, context.DeadlineExceeded):
		result.err = err
		result.ErrorMessage = fmt.Sprintf("step %s timed out after %s", name, timeout)
		log.Error("step timed out", "step", name, "timeout", timeout)
	default:
		result.err = err
		result.ErrorMessage = fmt.Sprintf("step %s failed: %v", name, err)
		log.Error("step failed", "step", name, "duration", result.Duration, "error", err)
	}
	return result
}
