package registry

import (
	"context"
	"fmt"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/protocol"
)

// ExecutorParam is the node parameter naming the executor that runs the node.
const ExecutorParam = "executor"

// Dispatcher is a StepExecutor that routes every node to the executor named
// by its executor parameter, falling back to a per-kind and then a global default.
type Dispatcher struct {
	executors   map[string]protocol.StepExecutor
	kindDefault map[models.NodeKind]string
	defaultID   string
}

type DispatcherOption func(*Dispatcher)

// WithKindDefault routes nodes of kind without an executor parameter to id.
func WithKindDefault(kind models.NodeKind, id string) DispatcherOption {
	return func(d *Dispatcher) {
		d.kindDefault[kind] = id
	}
}

// NewDispatcher creates one executor per registered factory. config holds the
// per-executor configuration keyed by factory id.
func NewDispatcher(
	r *Registry,
	defaultID string,
	config map[string]map[string]any,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	d := &Dispatcher{
		executors:   make(map[string]protocol.StepExecutor),
		kindDefault: make(map[models.NodeKind]string),
		defaultID:   defaultID,
	}

	for _, opt := range opts {
		opt(d)
	}

	for _, factory := range r.Factories() {
		executor, err := r.Create(factory.ID(), config[factory.ID()])
		if err != nil {
			return nil, fmt.Errorf("failed to create executor %s: %w", factory.ID(), err)
		}

		d.executors[factory.ID()] = executor
	}

	if _, ok := d.executors[defaultID]; !ok {
		return nil, fmt.Errorf("default %w: %q", ErrExecutorNotRegistered, defaultID)
	}

	for kind, id := range d.kindDefault {
		if _, ok := d.executors[id]; !ok {
			return nil, fmt.Errorf("%s default %w: %q", kind, ErrExecutorNotRegistered, id)
		}
	}

	return d, nil
}

// ExecutorFor returns the executor that runs node.
func (d *Dispatcher) ExecutorFor(node *models.Node) (protocol.StepExecutor, error) {
	id, _ := node.Parameters[ExecutorParam].(string)
	if id == "" {
		id = d.kindDefault[node.Kind]
	}

	if id == "" {
		id = d.defaultID
	}

	executor, ok := d.executors[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w: %q", node.ID, ErrExecutorNotRegistered, id)
	}

	return executor, nil
}

func (d *Dispatcher) EstimateCost(ctx context.Context, node *models.Node) (models.GasAmount, error) {
	executor, err := d.ExecutorFor(node)
	if err != nil {
		return models.GasAmount{}, err
	}

	return executor.EstimateCost(ctx, node)
}

func (d *Dispatcher) EstimateSuccessRate(ctx context.Context, node *models.Node) (float64, error) {
	executor, err := d.ExecutorFor(node)
	if err != nil {
		return 0, err
	}

	return executor.EstimateSuccessRate(ctx, node)
}

func (d *Dispatcher) EstimateDurationMs(ctx context.Context, node *models.Node) (int64, error) {
	executor, err := d.ExecutorFor(node)
	if err != nil {
		return 0, err
	}

	durations, ok := executor.(protocol.DurationEstimator)
	if !ok {
		return 0, nil
	}

	return durations.EstimateDurationMs(ctx, node)
}

func (d *Dispatcher) Execute(ctx context.Context, node *models.Node, inputs map[string]any) (*protocol.StepOutput, error) {
	executor, err := d.ExecutorFor(node)
	if err != nil {
		return nil, err
	}

	return executor.Execute(ctx, node, inputs)
}
