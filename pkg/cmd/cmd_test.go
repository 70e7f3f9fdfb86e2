package cmd

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPersistence_File(t *testing.T) {
	ctx := context.Background()

	for _, url := range []string{t.TempDir(), "file://" + t.TempDir()} {
		store, err := NewPersistence(ctx, discardLogger(), url)
		require.NoError(t, err)
		require.NoError(t, store.HealthCheck(ctx))
	}
}

func TestNewPersistence_Unsupported(t *testing.T) {
	_, err := NewPersistence(context.Background(), discardLogger(), "mongodb://localhost/flows")
	require.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", "", "flowplan-test", discardLogger())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("rabbitmq", "", "flowplan-test", discardLogger())
	require.ErrorIs(t, err, ErrUnsupportedEventBus)

	_, err = NewEventBus("kafka", " , ", "flowplan-test", discardLogger())
	require.Error(t, err)
}

func TestNewDispatcher(t *testing.T) {
	reg, err := NewRegistry(discardLogger(), filepath.Join(t.TempDir(), "plugins"))
	require.NoError(t, err)

	dispatcher, err := NewDispatcher(reg, "log", nil)
	require.NoError(t, err)

	trigger, err := models.NewNode("t1", models.NodeKindTrigger, "Start")
	require.NoError(t, err)

	executor, err := dispatcher.ExecutorFor(trigger)
	require.NoError(t, err)
	assert.NotNil(t, executor)

	_, err = NewDispatcher(reg, "chain", nil)
	require.Error(t, err)
}
