package stub

import (
	"log/slog"

	"github.com/dukex/flowplan/pkg/protocol"
)

// Factory creates stub executors.
type Factory struct{}

func (f *Factory) Create(_ map[string]any, _ *slog.Logger) (protocol.StepExecutor, error) {
	return New(), nil
}

func (f *Factory) ID() string {
	return "stub"
}

func (f *Factory) Name() string {
	return "Stub"
}

func (f *Factory) Description() string {
	return "Returns deterministic mock outputs and evaluates conditions without side effects"
}

func NewFactory() protocol.ExecutorFactory {
	return &Factory{}
}
