package registry

import (
	"log/slog"

	"github.com/dukex/flowplan/pkg/executors/httpjob"
	logexecutor "github.com/dukex/flowplan/pkg/executors/log"
	"github.com/dukex/flowplan/pkg/executors/stub"
)

// NewWithBuiltins returns a registry holding the stub, log and httpjob executors.
func NewWithBuiltins(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(stub.NewFactory())
	r.Register(logexecutor.NewFactory())
	r.Register(httpjob.NewFactory())

	return r
}
