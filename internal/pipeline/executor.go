package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reasonloop/reasonloop/internal/metrics"
	"github.com/reasonloop/reasonloop/internal/planner"
	"github.com/reasonloop/reasonloop/internal/results"
)

// ToolExecutor runs one subtask against the external tool collaborator. It
// may fail; the pipeline retries each subtask at most once before recording
// an empty result and moving on.
type ToolExecutor interface {
	Execute(ctx context.Context, task planner.SubTask) (string, error)
}

// executeOne runs a single subtask with the one-retry policy. A second
// failure yields an empty output, never an error: only cancellation
// propagates.
func (p *Pipeline) executeOne(ctx context.Context, task planner.SubTask) (results.Entry, error) {
	metrics.SubtasksExecuted.Inc()

	output, err := p.executor.Execute(ctx, task)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results.Entry{}, ctxErr
		}
		metrics.SubtaskRetries.Inc()
		p.logger.Warn("Subtask execution failed; retrying once",
			zap.String("subtask_id", task.ID),
			zap.Error(err),
		)
		output, err = p.executor.Execute(ctx, task)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results.Entry{}, ctxErr
		}
		p.logger.Warn("Subtask execution failed after retry; recording empty result",
			zap.String("subtask_id", task.ID),
			zap.Error(err),
		)
		output = ""
	}
	return results.Entry{Query: task.Query, Output: output}, nil
}

// executeRound runs the given subtasks with bounded fan-out and returns
// their results in the subtasks' order regardless of completion order. The
// returned slice is complete when err is nil: the round boundary is a
// synchronization barrier.
func (p *Pipeline) executeRound(ctx context.Context, tasks []planner.SubTask, fanout int) ([]results.Entry, error) {
	if fanout < 1 {
		fanout = 1
	}
	entries := make([]results.Entry, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanout)
	for i, task := range tasks {
		g.Go(func() error {
			entry, err := p.executeOne(gctx, task)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// roundFanout bounds in-round concurrency by the analyzer's tool estimate
// when it gave one, capped by config. Zero means "unknown", not zero
// concurrency.
func (p *Pipeline) roundFanout(estimatedTools int) int {
	fanout := p.cfg.MaxFanout
	if estimatedTools > 0 && estimatedTools < fanout {
		fanout = estimatedTools
	}
	return fanout
}

var errNoExecutor = errors.New("pipeline has no tool executor")
