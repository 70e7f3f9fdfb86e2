// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/registry"
)

// NewRegistry returns the builtin executors plus any plugins found under pluginsPath.
func NewRegistry(logger *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewWithBuiltins(logger)

	if pluginsPath == "" {
		return reg, nil
	}

	plugins, err := reg.LoadExecutorPlugins(pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load executor plugins: %w", err)
	}

	for _, plugin := range plugins {
		reg.Register(plugin)
	}

	return reg, nil
}

// NewDispatcher routes nodes to registered executors. Triggers and conditions
// run on the stub unless a node names its executor.
func NewDispatcher(reg *registry.Registry, defaultExecutor string, config map[string]map[string]any) (*registry.Dispatcher, error) {
	return registry.NewDispatcher(
		reg,
		defaultExecutor,
		config,
		registry.WithKindDefault(models.NodeKindTrigger, "stub"),
		registry.WithKindDefault(models.NodeKindCondition, "stub"),
	)
}
