package httpjob_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/flowplan/pkg/executors/httpjob"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/simulator"
	"github.com/dukex/flowplan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(attempts int) *httpjob.Executor {
	return httpjob.New(nil, httpjob.RetryConfig{Attempts: attempts, Delay: time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecute_PostsJSONAndExposesFields(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 10, body["amount"], 0)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobId":"job-42","status_code":"ignored"}`))
	}))
	defer server.Close()

	node := testutil.Action("a1",
		testutil.WithParam("url", server.URL+"/jobs"),
		testutil.WithParam("method", "POST"),
		testutil.WithParam("headers", map[string]any{"Authorization": "Bearer token123"}),
		testutil.WithParam("body", map[string]any{"amount": 10}),
	)

	output, err := newExecutor(1).Execute(context.Background(), node, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, output.Values["status_code"])
	assert.Equal(t, "job-42", output.Values["jobId"])
	assert.Equal(t, map[string]any{"jobId": "job-42", "status_code": "ignored"}, output.Values["body"])
}

func TestExecute_PlainTextBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("accepted"))
	}))
	defer server.Close()

	node := testutil.Action("a1", testutil.WithParam("url", server.URL))

	output, err := newExecutor(1).Execute(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, "accepted", output.Values["body"])
}

func TestExecute_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	node := testutil.Action("a1", testutil.WithParam("url", server.URL))

	output, err := newExecutor(3).Execute(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, true, output.Values["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_StatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		attempts  int
		wantCalls int32
	}{
		{name: "client error is not retried", status: http.StatusNotFound, attempts: 3, wantCalls: 1},
		{name: "server error after last attempt", status: http.StatusServiceUnavailable, attempts: 2, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			node := testutil.Action("a1", testutil.WithParam("url", server.URL))

			_, err := newExecutor(tt.attempts).Execute(context.Background(), node, nil)
			require.ErrorIs(t, err, httpjob.ErrHTTPStatus)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestExecute_MissingURL(t *testing.T) {
	t.Parallel()

	_, err := newExecutor(1).Execute(context.Background(), testutil.Action("a1"), nil)
	require.ErrorIs(t, err, httpjob.ErrURLMissing)
}

func TestExecute_DryRunSendsNothing(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	node := testutil.Action("a1",
		testutil.WithParam("url", server.URL),
		models.WithOutputs(testutil.Out("jobId", models.VariableTypeString)),
	)

	output, err := newExecutor(1).Execute(simulator.WithDryRun(context.Background()), node, nil)
	require.NoError(t, err)

	assert.Equal(t, true, output.Values["dry_run"])
	assert.Equal(t, "mock-a1-jobId", output.Values["jobId"])
	assert.Equal(t, int32(0), calls.Load())
}

func TestExecute_CancelledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExecutor(2).Execute(ctx, testutil.Action("a1", testutil.WithParam("url", server.URL)), nil)
	require.Error(t, err)
}

func TestFactory(t *testing.T) {
	t.Parallel()

	factory := httpjob.NewFactory()
	assert.Equal(t, "httpjob", factory.ID())
	assert.NotEmpty(t, factory.Name())
	assert.NotEmpty(t, factory.Description())

	executor, err := factory.Create(map[string]any{"timeoutSeconds": 5.0, "retryAttempts": 2}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &httpjob.Executor{}, executor)
}
