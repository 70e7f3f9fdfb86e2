// Package simulator runs an execution plan stage by stage against a step executor.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowplan/pkg/executors/stub"
	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/otelhelper"
	"github.com/dukex/flowplan/pkg/protocol"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrNoExecutor = errors.New("no step executor configured for live run")

// Observer is called for every recorded step result, in plan order, after the
// stage holding the step has finished.
type Observer func(ctx context.Context, result models.StepResult)

// Simulator executes plans over an immutable snapshot of a graph.
type Simulator struct {
	graph    *graph.Graph
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
	runID    string
}

type Option func(*Simulator)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Simulator) {
		s.tracer = tracer
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Simulator) {
		s.observer = observer
	}
}

// WithRunID fixes the id of the next run instead of generating one.
func WithRunID(id string) Option {
	return func(s *Simulator) {
		s.runID = id
	}
}

// NewRunID generates a short run id.
func NewRunID() string {
	return "run-" + uuid.New().String()[:8]
}

// New creates a simulator over a snapshot of g; later edits to g are not observed.
func New(g *graph.Graph, logger *slog.Logger, opts ...Option) *Simulator {
	s := &Simulator{
		graph:  g.Snapshot(),
		logger: logger.With("module", "simulator", "workflow_id", g.ID()),
		tracer: otelhelper.NoopTracer(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// run holds the mutable state of one pass. It is only touched between stages.
type run struct {
	plan      models.ExecutionPlan
	values    map[string]any
	results   map[string]models.StepResult
	falseCond map[string]bool
	planned   map[string]int
	abortedBy string
}

// Run executes plan one stage at a time. Nodes of a stage are dispatched
// concurrently and the stage's outputs are merged into the binding table
// before the next stage starts. Execution errors are recorded per step and
// never returned; callers inspect the result's OverallStatus.
//
// A DryRun with a nil executor uses the stub executor.
func (s *Simulator) Run(
	ctx context.Context,
	plan models.ExecutionPlan,
	mode models.RunMode,
	executor protocol.StepExecutor,
) models.RunResult {
	runID := s.runID
	if runID == "" {
		runID = NewRunID()
	}

	result := models.RunResult{
		ID:         runID,
		WorkflowID: s.graph.ID(),
		Mode:       mode,
		Results:    make([]models.StepResult, 0, plan.Len()),
		StartedAt:  time.Now().UTC(),
	}

	if mode == models.RunModeDryRun {
		ctx = WithDryRun(ctx)

		if executor == nil {
			executor = stub.New()
		}
	}

	if executor == nil {
		executor = missingExecutor{}
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "simulator.run",
		attribute.String(otelhelper.WorkflowIDKey, s.graph.ID()),
		attribute.String(otelhelper.RunIDKey, result.ID),
		attribute.String(otelhelper.RunModeKey, string(mode)),
	)
	defer span.End()

	logger := s.logger.With("run_id", result.ID, "mode", mode)
	logger.InfoContext(ctx, "Starting run", "stages", len(plan.Stages), "nodes", plan.Len())

	state := &run{
		plan:      plan,
		values:    make(map[string]any),
		results:   make(map[string]models.StepResult, plan.Len()),
		falseCond: make(map[string]bool),
		planned:   plan.StageOf(),
	}

	for name, value := range s.graph.Variables() {
		state.values[models.MakeVariableRef(models.WorkflowScope, name)] = value
	}

	for index, stage := range plan.Stages {
		stageResults := s.runStage(ctx, logger, state, index, stage, executor)

		for _, res := range stageResults {
			state.record(s.graph, res)
			result.Results = append(result.Results, res)

			if s.observer != nil {
				s.observer(ctx, res)
			}
		}
	}

	result.FinishedAt = time.Now().UTC()
	result.OverallStatus = overallStatus(ctx, result.Results)

	if result.OverallStatus == models.StepStatusFailed {
		otelhelper.SetError(span, fmt.Errorf("run %s failed", result.ID))
	}

	logger.InfoContext(ctx, "Run finished",
		"status", result.OverallStatus,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)

	return result
}

func overallStatus(ctx context.Context, results []models.StepResult) models.StepStatus {
	if ctx.Err() != nil {
		return models.StepStatusFailed
	}

	for _, res := range results {
		if res.Status != models.StepStatusSucceeded && res.Status != models.StepStatusSkipped {
			return models.StepStatusFailed
		}
	}

	return models.StepStatusSucceeded
}

// record merges a finished step into the run state.
func (r *run) record(g *graph.Graph, res models.StepResult) {
	r.results[res.NodeID] = res

	if res.Status != models.StepStatusSucceeded {
		return
	}

	node, ok := g.Node(res.NodeID)
	if !ok {
		return
	}

	for _, out := range node.DeclaredOutputs {
		if value, ok := res.Outputs[out.Name]; ok {
			r.values[models.MakeVariableRef(node.ID, out.Name)] = value
		}
	}

	if node.IsCondition() {
		if passed, ok := res.Outputs[stub.ConditionResultKey].(bool); ok && !passed {
			r.falseCond[node.ID] = true
		}
	}
}

// blockedBy returns why a node must be skipped before dispatch, or "".
func (r *run) blockedBy(g *graph.Graph, node *models.Node) string {
	if r.abortedBy != "" {
		return fmt.Sprintf("run aborted after %s failed", r.abortedBy)
	}

	for _, pred := range g.Predecessors(node.ID) {
		if _, ok := r.planned[pred]; !ok {
			continue
		}

		res, ok := r.results[pred]
		if !ok {
			continue
		}

		switch {
		case res.Status == models.StepStatusSkipped:
			return fmt.Sprintf("upstream %s was skipped", pred)
		case res.Status == models.StepStatusFailed:
			predNode, _ := g.Node(pred)
			if predNode == nil || predNode.Policy() != models.OnErrorContinue {
				return fmt.Sprintf("upstream %s failed", pred)
			}
		case r.falseCond[pred]:
			return fmt.Sprintf("condition %s evaluated to false", pred)
		}
	}

	return ""
}

// inputs builds the immutable variable snapshot of a node: every set visible
// variable under its qualified key, plus the bare name when exactly one
// unshadowed producer is visible for it.
func (r *run) inputs(nodeID string) map[string]any {
	visible := r.plan.Visible[nodeID]
	in := make(map[string]any, len(visible)*2)

	candidates := make(map[string]int)

	for _, v := range visible {
		if !v.Shadowed {
			candidates[v.Name]++
		}

		value, ok := r.values[v.Key()]
		if !ok {
			continue
		}

		in[v.Key()] = value
	}

	for _, v := range visible {
		if v.Shadowed || candidates[v.Name] != 1 {
			continue
		}

		if value, ok := r.values[v.Key()]; ok {
			in[v.Name] = value
		}
	}

	return in
}

type missingExecutor struct{}

func (missingExecutor) EstimateCost(context.Context, *models.Node) (models.GasAmount, error) {
	return models.GasAmount{}, ErrNoExecutor
}

func (missingExecutor) EstimateSuccessRate(context.Context, *models.Node) (float64, error) {
	return 0, ErrNoExecutor
}

func (missingExecutor) Execute(context.Context, *models.Node, map[string]any) (*protocol.StepOutput, error) {
	return nil, ErrNoExecutor
}
