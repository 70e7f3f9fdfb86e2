package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/otelhelper"
	"github.com/dukex/flowplan/pkg/protocol"
	"github.com/dukex/flowplan/pkg/template"
	"go.opentelemetry.io/otel/attribute"
)

// runStage dispatches every node of a stage concurrently and waits for all of
// them. A failing node with the abort policy cancels its in-flight siblings and
// marks the rest of the run as aborted.
func (s *Simulator) runStage(
	ctx context.Context,
	logger *slog.Logger,
	state *run,
	index int,
	stage models.Stage,
	executor protocol.StepExecutor,
) []models.StepResult {
	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger = logger.With("stage", index)
	logger.DebugContext(ctx, "Starting stage", "nodes", stage)

	results := make([]models.StepResult, len(stage))

	var wg sync.WaitGroup

	for i, id := range stage {
		results[i] = models.StepResult{NodeID: id, Stage: index}

		node, ok := s.graph.Node(id)
		if !ok {
			results[i].Status = models.StepStatusFailed
			results[i].Error = fmt.Sprintf("node %s not found in graph", id)

			continue
		}

		if ctx.Err() != nil {
			results[i].Status = models.StepStatusSkipped
			results[i].Error = "run cancelled"

			continue
		}

		if reason := state.blockedBy(s.graph, node); reason != "" {
			results[i].Status = models.StepStatusSkipped
			results[i].Error = reason
			logger.DebugContext(ctx, "Skipping node", "node_id", id, "reason", reason)

			continue
		}

		inputs := state.inputs(id)

		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i] = s.runStep(stageCtx, logger, index, node, inputs, executor)

			if results[i].Status == models.StepStatusFailed && node.Policy() == models.OnErrorAbort {
				cancel()
			}
		}()
	}

	wg.Wait()

	for _, res := range results {
		if res.Status != models.StepStatusFailed {
			continue
		}

		node, ok := s.graph.Node(res.NodeID)
		if (!ok || node.Policy() == models.OnErrorAbort) && state.abortedBy == "" {
			state.abortedBy = res.NodeID
			logger.WarnContext(ctx, "Aborting run", "node_id", res.NodeID, "error", res.Error)
		}
	}

	return results
}

type outcome struct {
	output *protocol.StepOutput
	err    error
}

// runStep renders the node's parameters against its inputs and calls the
// executor. If the stage is cancelled or the node's timeout elapses before
// Execute returns, the step is recorded right away and marked abandoned; the
// late result is discarded.
func (s *Simulator) runStep(
	stageCtx context.Context,
	logger *slog.Logger,
	index int,
	node *models.Node,
	inputs map[string]any,
	executor protocol.StepExecutor,
) (res models.StepResult) {
	res = models.StepResult{NodeID: node.ID, Stage: index}
	logger = logger.With("node_id", node.ID)

	ctx, span := otelhelper.StartSpan(stageCtx, s.tracer, "simulator.step",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
		attribute.Int(otelhelper.StageKey, index),
	)
	defer span.End()

	stepCtx := ctx

	if node.TimeoutMs > 0 {
		var cancel context.CancelFunc

		stepCtx, cancel = context.WithTimeout(ctx, time.Duration(node.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()

	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()

		if res.Status == models.StepStatusFailed {
			otelhelper.SetError(span, errors.New(res.Error), attribute.String(otelhelper.NodeIDKey, node.ID))
			logger.WarnContext(ctx, "Step failed", "error", res.Error)
		} else {
			logger.DebugContext(ctx, "Step finished", "status", res.Status)
		}
	}()

	params, err := template.RenderParameters(node.Parameters, inputs)
	if err != nil {
		res.Status = models.StepStatusFailed
		res.Error = err.Error()

		return res
	}

	rendered := node.Clone()
	rendered.Parameters = params

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("executor panicked: %v", r)}
			}
		}()

		output, err := executor.Execute(stepCtx, rendered, inputs)
		done <- outcome{output: output, err: err}
	}()

	select {
	case o := <-done:
		return finish(stageCtx, stepCtx, res, node, o)
	case <-stepCtx.Done():
		select {
		case o := <-done:
			return finish(stageCtx, stepCtx, res, node, o)
		default:
		}

		res.Abandoned = true

		return interrupted(stageCtx, res, node)
	}
}

func finish(
	stageCtx, stepCtx context.Context,
	res models.StepResult,
	node *models.Node,
	o outcome,
) models.StepResult {
	if o.err == nil {
		res.Status = models.StepStatusSucceeded

		if o.output != nil {
			res.Outputs = o.output.Values
			res.GasUsed = o.output.GasUsed
		}

		return res
	}

	if stageCtx.Err() != nil || stepCtx.Err() != nil {
		return interrupted(stageCtx, res, node)
	}

	res.Status = models.StepStatusFailed
	res.Error = o.err.Error()

	return res
}

// interrupted records a step stopped by cancellation (skipped) or by its own
// timeout (failed).
func interrupted(stageCtx context.Context, res models.StepResult, node *models.Node) models.StepResult {
	if stageCtx.Err() != nil {
		res.Status = models.StepStatusSkipped
		res.Error = "cancelled: " + context.Cause(stageCtx).Error()

		return res
	}

	res.Status = models.StepStatusFailed
	res.Error = fmt.Sprintf("timed out after %dms", node.TimeoutMs)

	return res
}
