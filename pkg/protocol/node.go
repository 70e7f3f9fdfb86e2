// Package protocol defines the interfaces and contracts for pluggable step executors.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/flowplan/pkg/models"
)

// StepOutput is what an executor returns for one node.
type StepOutput struct {
	Values  map[string]any
	GasUsed *models.GasAmount
}

// Estimator provides per-node cost and risk estimates.
type Estimator interface {
	EstimateCost(ctx context.Context, node *models.Node) (models.GasAmount, error)
	EstimateSuccessRate(ctx context.Context, node *models.Node) (float64, error)
}

// DurationEstimator is optionally implemented by estimators that know how long a node takes.
type DurationEstimator interface {
	EstimateDurationMs(ctx context.Context, node *models.Node) (int64, error)
}

// StepExecutor runs workflow steps. It is implemented by chain specific and
// off-chain adapters; implementations must honor ctx cancellation where they can.
type StepExecutor interface {
	Estimator

	// Execute runs a node with an immutable snapshot of its visible variables.
	Execute(ctx context.Context, node *models.Node, inputs map[string]any) (*StepOutput, error)
}

// ExecutorFactory creates step executors and provides metadata about them.
type ExecutorFactory interface {
	// Create creates a new executor with the given configuration
	Create(config map[string]any, logger *slog.Logger) (StepExecutor, error)

	// ID returns the unique identifier nodes use in their executor parameter
	ID() string

	// Name returns the human-readable name
	Name() string

	// Description returns a description of what the executor does
	Description() string
}
