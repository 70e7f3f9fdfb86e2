package log

import (
	"log/slog"

	"github.com/dukex/flowplan/pkg/protocol"
)

// Factory creates log executors.
type Factory struct{}

func (f *Factory) Create(_ map[string]any, logger *slog.Logger) (protocol.StepExecutor, error) {
	return New(logger), nil
}

func (f *Factory) ID() string {
	return "log"
}

func (f *Factory) Name() string {
	return "Log"
}

func (f *Factory) Description() string {
	return "Logs the node message at the configured level (debug, info, warn, error)"
}

func NewFactory() protocol.ExecutorFactory {
	return &Factory{}
}
