// Package workflow owns an editable workflow graph and keeps its execution plan
// and estimate current as the graph changes.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/flowplan/pkg/estimate"
	"github.com/dukex/flowplan/pkg/eventbus"
	"github.com/dukex/flowplan/pkg/events"
	"github.com/dukex/flowplan/pkg/flow"
	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/otelhelper"
	"github.com/dukex/flowplan/pkg/planner"
	"github.com/dukex/flowplan/pkg/protocol"
	"github.com/dukex/flowplan/pkg/simulator"
	"github.com/dukex/flowplan/pkg/validation"
	"go.opentelemetry.io/otel/trace"
)

var ErrNoValidPlan = errors.New("workflow has no valid plan")

// Report is the outcome of the re-plan pipeline for one graph version.
type Report struct {
	GraphVersion uint64                `json:"graph_version"`
	Valid        bool                  `json:"valid"`
	GraphErrors  []models.GraphError   `json:"graph_errors,omitempty"`
	Warnings     []models.GraphError   `json:"warnings,omitempty"`
	FlowErrors   []models.FlowError    `json:"flow_errors,omitempty"`
	PlanErrors   []models.PlanError    `json:"plan_errors,omitempty"`
	Plan         *models.ExecutionPlan `json:"plan,omitempty"`
	Estimate     *models.PlanEstimate  `json:"estimate,omitempty"`
	// EstimateError is set when the plan is valid but estimates could not be collected.
	EstimateError string `json:"estimate_error,omitempty"`
}

// Session is the single writer of one workflow graph. Every mutation re-runs
// validation, flow resolution, planning and estimation. The last valid plan is
// retained while the graph is invalid so callers can keep displaying it.
type Session struct {
	mu sync.RWMutex

	graph     *graph.Graph
	estimator protocol.Estimator
	executor  protocol.StepExecutor
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	base      *slog.Logger
	logger    *slog.Logger

	report    Report
	lastValid *Report
	lastRun   *models.RunResult
}

type Option func(*Session)

// WithExecutor sets the executor used for estimates and live runs. Dry runs
// always use the stub executor.
func WithExecutor(executor protocol.StepExecutor) Option {
	return func(s *Session) {
		s.executor = executor
		if executor != nil {
			s.estimator = executor
		}
	}
}

// WithPublisher publishes lifecycle events. Publish failures are logged and ignored.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(s *Session) {
		s.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = tracer
	}
}

// NewSession takes ownership of g and compiles its first plan.
func NewSession(ctx context.Context, g *graph.Graph, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		graph:     g,
		estimator: estimate.Static{},
		tracer:    otelhelper.NoopTracer(),
		base:      logger,
		logger:    logger.With("module", "workflow_session", "workflow_id", g.ID()),
	}

	for _, opt := range opts {
		opt(s)
	}

	_, event, _ := s.applyLocked(ctx, func() error { return nil })
	s.publish(ctx, event)

	return s
}

func (s *Session) ID() string {
	return s.graph.ID()
}

// Graph returns a snapshot of the current graph.
func (s *Session) Graph() *graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.graph.Snapshot()
}

// Report returns the pipeline outcome for the current graph version.
func (s *Session) Report() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.report
}

// LastValid returns the most recent valid report, which may belong to an older graph version.
func (s *Session) LastValid() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastValid == nil {
		return Report{}, false
	}

	return *s.lastValid, true
}

// LastRun returns the result of the most recent simulation or execution.
func (s *Session) LastRun() (models.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastRun == nil {
		return models.RunResult{}, false
	}

	return *s.lastRun, true
}

func (s *Session) AddNode(ctx context.Context, node *models.Node) (Report, error) {
	return s.mutate(ctx, func() error {
		return s.graph.AddNode(node)
	})
}

func (s *Session) UpdateNode(ctx context.Context, node *models.Node) (Report, error) {
	return s.mutate(ctx, func() error {
		return s.graph.UpdateNode(node)
	})
}

func (s *Session) RemoveNode(ctx context.Context, id string) (Report, error) {
	return s.mutate(ctx, func() error {
		return s.graph.RemoveNode(id)
	})
}

// Connect adds an edge and returns it with its assigned id.
func (s *Session) Connect(ctx context.Context, conn models.Connection) (models.Connection, Report, error) {
	var created models.Connection

	report, err := s.mutate(ctx, func() error {
		var err error

		created, err = s.graph.Connect(conn)

		return err
	})

	return created, report, err
}

func (s *Session) Disconnect(ctx context.Context, connectionID string) (Report, error) {
	return s.mutate(ctx, func() error {
		return s.graph.Disconnect(connectionID)
	})
}

func (s *Session) SetVariable(ctx context.Context, name string, value any) (Report, error) {
	return s.mutate(ctx, func() error {
		s.graph.SetVariable(name, value)

		return nil
	})
}

func (s *Session) DeleteVariable(ctx context.Context, name string) (Report, error) {
	return s.mutate(ctx, func() error {
		s.graph.DeleteVariable(name)

		return nil
	})
}

// Rename changes the workflow name and description. Empty values are left unchanged.
func (s *Session) Rename(ctx context.Context, name, description string) (Report, error) {
	return s.mutate(ctx, func() error {
		if name != "" {
			s.graph.Rename(name)
		}

		if description != "" {
			s.graph.Describe(description)
		}

		return nil
	})
}

// mutate applies a change and re-plans under the write lock. The resulting
// event is published after the lock is released.
func (s *Session) mutate(ctx context.Context, apply func() error) (Report, error) {
	report, event, err := s.applyLocked(ctx, apply)
	if event != nil {
		s.publish(ctx, event)
	}

	return report, err
}

func (s *Session) applyLocked(ctx context.Context, apply func() error) (Report, eventbus.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := apply(); err != nil {
		return s.report, nil, err
	}

	event := s.replan(ctx)

	return s.report, event, nil
}

// replan runs the pipeline and returns the event describing its outcome. The
// caller holds the write lock.
func (s *Session) replan(ctx context.Context) eventbus.Event {
	version := s.graph.Version()
	logger := s.logger.With("graph_version", version)

	report := Report{GraphVersion: version}

	result := validation.Validate(s.graph)
	report.GraphErrors = result.Errors
	report.Warnings = result.Warnings

	if !result.Valid() {
		return s.reject(ctx, logger, report)
	}

	bindings, flowErrs := flow.ResolveBindings(s.graph)
	report.FlowErrors = withoutNodes(flowErrs, result.Orphans())

	if len(report.FlowErrors) > 0 {
		return s.reject(ctx, logger, report)
	}

	plan, planErrs := planner.Plan(s.graph, bindings)
	report.PlanErrors = planErrs

	if planner.HasInternalCycle(planErrs) {
		logger.ErrorContext(ctx, "Planner found a cycle that passed validation", "errors", planErrs)
		panic(fmt.Sprintf("workflow %s: internal cycle reached the planner: %v", s.graph.ID(), planErrs))
	}

	report.Valid = true
	report.Plan = &plan

	nodeEstimates, err := estimate.Collect(ctx, s.graph, plan, s.estimator)
	if err != nil {
		logger.WarnContext(ctx, "Failed to collect estimates", "error", err)
		report.EstimateError = err.Error()
	} else {
		aggregated := estimate.Aggregate(plan, nodeEstimates)
		report.Estimate = &aggregated
	}

	s.report = report
	valid := report
	s.lastValid = &valid

	logger.DebugContext(ctx, "Plan compiled", "stages", len(plan.Stages), "excluded", len(plan.Excluded))

	event := &events.PlanCompiled{
		BaseEvent:    events.NewBaseEvent(events.PlanCompiledEvent, s.graph.ID()),
		GraphVersion: version,
		Stages:       plan.StageIDs(),
		Excluded:     plan.Excluded,
		Warnings:     report.Warnings,
	}
	if report.Estimate != nil {
		event.Estimate = *report.Estimate
	}

	return event
}

func (s *Session) reject(ctx context.Context, logger *slog.Logger, report Report) eventbus.Event {
	s.report = report

	logger.DebugContext(ctx, "Plan rejected",
		"graph_errors", len(report.GraphErrors),
		"flow_errors", len(report.FlowErrors),
	)

	return &events.PlanRejected{
		BaseEvent:    events.NewBaseEvent(events.PlanRejectedEvent, s.graph.ID()),
		GraphVersion: report.GraphVersion,
		GraphErrors:  report.GraphErrors,
		FlowErrors:   report.FlowErrors,
	}
}

// withoutNodes drops flow errors on excluded nodes; they never run.
func withoutNodes(errs []models.FlowError, excluded []string) []models.FlowError {
	if len(excluded) == 0 {
		return errs
	}

	return slices.DeleteFunc(errs, func(e models.FlowError) bool {
		return slices.Contains(excluded, e.NodeID)
	})
}

// Simulate runs the current plan. It fails when the current graph version has
// no valid plan. A dry run ignores the configured executor and runs on the
// stub, which returns mock values for every declared output.
func (s *Session) Simulate(ctx context.Context, mode models.RunMode) (models.RunResult, error) {
	s.mu.RLock()
	report := s.report
	snapshot := s.graph.Snapshot()
	s.mu.RUnlock()

	if !report.Valid || report.Plan == nil {
		return models.RunResult{}, fmt.Errorf("%w: graph version %d", ErrNoValidPlan, report.GraphVersion)
	}

	runID := simulator.NewRunID()

	sim := simulator.New(snapshot, s.base,
		simulator.WithTracer(s.tracer),
		simulator.WithRunID(runID),
		simulator.WithObserver(func(ctx context.Context, res models.StepResult) {
			s.publish(ctx, &events.StepCompleted{
				BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, snapshot.ID()),
				RunID:     runID,
				Result:    res,
			})
		}),
	)

	s.publish(ctx, &events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, snapshot.ID()),
		RunID:     runID,
		Mode:      mode,
		Stages:    report.Plan.StageIDs(),
	})

	executor := s.executor
	if mode == models.RunModeDryRun {
		executor = nil
	}

	result := sim.Run(ctx, *report.Plan, mode, executor)

	s.publish(ctx, events.NewRunCompleted(result))

	s.mu.Lock()
	s.lastRun = &result
	s.mu.Unlock()

	return result, nil
}

func (s *Session) publish(ctx context.Context, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, s.graph.ID(), event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
