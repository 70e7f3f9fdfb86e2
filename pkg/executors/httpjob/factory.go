package httpjob

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowplan/pkg/protocol"
)

// Factory creates HTTP job executors. Config keys: "timeoutSeconds",
// "retryAttempts" and "retryDelaySeconds".
type Factory struct{}

func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.StepExecutor, error) {
	timeout := defaultTimeout
	if v, ok := number(config["timeoutSeconds"]); ok && v > 0 {
		timeout = time.Duration(v * float64(time.Second))
	}

	retry := RetryConfig{Attempts: 1}
	if v, ok := number(config["retryAttempts"]); ok {
		retry.Attempts = int(v)
	}

	if v, ok := number(config["retryDelaySeconds"]); ok {
		retry.Delay = time.Duration(v * float64(time.Second))
	}

	return New(&http.Client{Timeout: timeout}, retry, logger), nil
}

func (f *Factory) ID() string {
	return "httpjob"
}

func (f *Factory) Name() string {
	return "HTTP Job"
}

func (f *Factory) Description() string {
	return "Runs off-chain jobs by calling an HTTP endpoint, retrying on server errors"
}

func NewFactory() protocol.ExecutorFactory {
	return &Factory{}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
