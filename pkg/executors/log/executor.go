// Package log provides a step executor that writes a node's message to the log.
package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowplan/pkg/estimate"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/protocol"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Executor logs the rendered "message" parameter at the "level" parameter
// (default info). It has no other side effects, so it runs the same way in
// dry and live runs.
type Executor struct {
	estimate.Static

	logger *slog.Logger
}

func New(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("module", "log_executor")}
}

func (e *Executor) Execute(ctx context.Context, node *models.Node, _ map[string]any) (*protocol.StepOutput, error) {
	message := fmt.Sprint(node.Parameters["message"])
	if _, ok := node.Parameters["message"]; !ok {
		message = node.Name
	}

	levelName, _ := node.Parameters["level"].(string)

	level, ok := levels[levelName]
	if !ok {
		levelName = "info"
		level = slog.LevelInfo
	}

	e.logger.Log(ctx, level, message, "node_id", node.ID, "node_kind", node.Kind)

	values := map[string]any{
		"message": message,
		"level":   levelName,
		"logged":  true,
	}

	return &protocol.StepOutput{Values: values}, nil
}
