// Package registry holds the available step executors and routes nodes to them.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"sync"

	"github.com/dukex/flowplan/pkg/protocol"
)

var ErrExecutorNotRegistered = errors.New("executor not registered")

type Registry struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	factories map[string]protocol.ExecutorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.ExecutorFactory),
	}
}

// LoadExecutorPlugins loads every "executors/**/*.so" plugin under pluginsPath
// exporting an Executor symbol of type protocol.ExecutorFactory.
func (r *Registry) LoadExecutorPlugins(pluginsPath string) ([]protocol.ExecutorFactory, error) {
	return loadPlugin[protocol.ExecutorFactory](r.logger, pluginsPath, "Executor")
}

func (r *Registry) Register(factory protocol.ExecutorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory
}

func (r *Registry) Create(id string, config map[string]any) (protocol.StepExecutor, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrExecutorNotRegistered, id)
	}

	return factory.Create(config, r.logger.With("executor", id))
}

// Factories returns the registered factories sorted by id.
func (r *Registry) Factories() []protocol.ExecutorFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ExecutorFactory, 0, len(r.factories))
	for _, factory := range r.factories {
		out = append(out, factory)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })

	return out
}

// HealthCheck reports whether at least one executor is available.
func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.factories) == 0 {
		return "No executors registered", false
	}

	return fmt.Sprintf("%d executors registered", len(r.factories)), true
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/executors"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: symbol %s has type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded executor plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
