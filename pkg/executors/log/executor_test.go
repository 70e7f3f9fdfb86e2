package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	logexecutor "github.com/dukex/flowplan/pkg/executors/log"
	"github.com/dukex/flowplan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		name      string
		params    map[string]any
		wantLevel string
		wantText  string
	}{
		{name: "default level", params: map[string]any{"message": "transfer sent"}, wantLevel: "info", wantText: "level=INFO msg=\"transfer sent\""},
		{name: "warn level", params: map[string]any{"message": "low balance", "level": "warn"}, wantLevel: "warn", wantText: "level=WARN"},
		{name: "unknown level", params: map[string]any{"message": "x", "level": "loud"}, wantLevel: "info", wantText: "level=INFO"},
		{name: "falls back to name", params: map[string]any{}, wantLevel: "info", wantText: "msg=A1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			node := testutil.Action("a1")
			for k, v := range tt.params {
				testutil.WithParam(k, v)(node)
			}

			output, err := logexecutor.New(logger).Execute(context.Background(), node, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLevel, output.Values["level"])
			assert.Equal(t, true, output.Values["logged"])
			assert.Contains(t, buf.String(), tt.wantText)
			assert.Contains(t, buf.String(), "node_id=a1")
		})
	}
}
