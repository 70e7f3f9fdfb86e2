package main

import (
	"context"
	"log/slog"

	"github.com/dukex/flowplan/pkg/eventbus"
	"github.com/dukex/flowplan/pkg/events"
)

// logRunEvents writes a line for every finished run and every rejected plan.
func logRunEvents(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	logger = logger.With("module", "event_log")

	err := bus.Handle(events.RunCompletedEvent, func(ctx context.Context, event any) error {
		completed, ok := event.(*events.RunCompleted)
		if !ok {
			return nil
		}

		logger.InfoContext(ctx, "Run completed",
			"workflow_id", completed.WorkflowID,
			"run_id", completed.RunID,
			"mode", completed.Mode,
			"status", completed.OverallStatus,
			"duration_ms", completed.DurationMs,
		)

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.PlanRejectedEvent, func(ctx context.Context, event any) error {
		rejected, ok := event.(*events.PlanRejected)
		if !ok {
			return nil
		}

		logger.DebugContext(ctx, "Plan rejected",
			"workflow_id", rejected.WorkflowID,
			"graph_version", rejected.GraphVersion,
			"graph_errors", len(rejected.GraphErrors),
			"flow_errors", len(rejected.FlowErrors),
		)

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
