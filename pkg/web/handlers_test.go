package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/flowplan/pkg/persistence/file"
	"github.com/dukex/flowplan/pkg/registry"
	"github.com/dukex/flowplan/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	workflows := services.NewWorkflow(file.NewPersistence(t.TempDir()), logger)

	handlers := NewAPIHandlers(workflows, services.NewNode(workflows), registry.NewWithBuiltins(logger))

	app := fiber.New()
	handlers.Register(app)

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}

	return resp.StatusCode, decoded
}

func TestHandlers_WorkflowLifecycle(t *testing.T) {
	app := setupTestApp(t)

	status, body := doRequest(t, app, http.MethodPost, "/workflows", `{"id":"wf-1","name":"Payroll"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "wf-1", body["id"])

	steps := []struct {
		path string
		body string
	}{
		{"/workflows/wf-1/nodes", `{"id":"trigger1","type":"trigger","name":"Start","parameters":{"schedule":"0 9 * * 1"}}`},
		{"/workflows/wf-1/nodes", `{"id":"action1","type":"action","name":"Transfer","parameters":{"gasEstimate":"0.002 FLOW","successRate":0.9},"outputs":[{"name":"txId","type":"string"}]}`},
		{"/workflows/wf-1/nodes", `{"id":"output1","type":"output","name":"Notify","parameters":{"message":"sent {{txId}}"}}`},
		{"/workflows/wf-1/connections", `{"from":"trigger1","to":"action1"}`},
		{"/workflows/wf-1/connections", `{"id":"c-2","from":"action1","to":"output1"}`},
	}

	for _, step := range steps {
		status, body := doRequest(t, app, http.MethodPost, step.path, step.body)
		require.Equal(t, http.StatusCreated, status, body)
	}

	status, body = doRequest(t, app, http.MethodGet, "/workflows/wf-1/plan", "")
	require.Equal(t, http.StatusOK, status)

	report, ok := body["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, report["valid"])
	assert.Contains(t, body, "schedules")

	status, body = doRequest(t, app, http.MethodPost, "/workflows/wf-1/simulate", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "dry-run", body["mode"])

	status, _ = doRequest(t, app, http.MethodPost, "/workflows/wf-1/simulate", `{"mode":"replay"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doRequest(t, app, http.MethodDelete, "/workflows/wf-1/connections/c-2", "")
	require.Equal(t, http.StatusOK, status)

	report, ok = body["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, report["valid"])

	status, _ = doRequest(t, app, http.MethodPost, "/workflows/wf-1/simulate", `{"mode":"dry-run"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = doRequest(t, app, http.MethodDelete, "/workflows/wf-1", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = doRequest(t, app, http.MethodGet, "/workflows/wf-1", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "workflow_not_found", body["type"])
}

func TestHandlers_Errors(t *testing.T) {
	app := setupTestApp(t)

	status, _ := doRequest(t, app, http.MethodPost, "/workflows", `{"id":"wf-1","name":"Payroll"}`)
	require.Equal(t, http.StatusCreated, status)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantType   string
	}{
		{"invalid json", http.MethodPost, "/workflows", `{"name":`, http.StatusBadRequest, "validation_error"},
		{"short name", http.MethodPost, "/workflows", `{"name":"ab"}`, http.StatusBadRequest, "validation_error"},
		{"duplicate id", http.MethodPost, "/workflows", `{"id":"wf-1","name":"Again"}`, http.StatusConflict, "conflict"},
		{"bad limit", http.MethodGet, "/workflows?limit=abc", "", http.StatusBadRequest, "validation_error"},
		{"bad sort", http.MethodGet, "/workflows?sort_by=owner", "", http.StatusBadRequest, "validation_error"},
		{"unknown workflow", http.MethodGet, "/workflows/missing/plan", "", http.StatusNotFound, "workflow_not_found"},
		{"unknown node", http.MethodDelete, "/workflows/wf-1/nodes/ghost", "", http.StatusNotFound, "not_found"},
		{"self loop", http.MethodPost, "/workflows/wf-1/connections", `{"from":"a","to":"a"}`, http.StatusBadRequest, "validation_error"},
		{"bad kind", http.MethodPost, "/workflows/wf-1/nodes", `{"type":"webhook","name":"Hook"}`, http.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, body["type"])
		})
	}
}

func TestHandlers_ListWorkflows(t *testing.T) {
	app := setupTestApp(t)

	for _, body := range []string{`{"id":"wf-b","name":"Bravo"}`, `{"id":"wf-a","name":"Alpha"}`} {
		status, _ := doRequest(t, app, http.MethodPost, "/workflows", body)
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := doRequest(t, app, http.MethodGet, "/workflows?limit=1", "")
	require.Equal(t, http.StatusOK, status)

	assert.InDelta(t, 2, body["total_count"], 0)
	assert.Equal(t, true, body["has_next_page"])

	list, ok := body["workflows"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "wf-a", list[0].(map[string]any)["id"])
}

func TestHandlers_UpdateWorkflow(t *testing.T) {
	app := setupTestApp(t)

	status, _ := doRequest(t, app, http.MethodPost, "/workflows", `{"id":"wf-1","name":"Payroll"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := doRequest(t, app, http.MethodPatch, "/workflows/wf-1", `{"name":"Monthly payroll"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Monthly payroll", body["name"])

	status, body = doRequest(t, app, http.MethodPut, "/workflows/wf-1", `{"description":"Pays everyone"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Monthly payroll", body["name"])
	assert.Equal(t, "Pays everyone", body["description"])
}

func TestHandlers_ExecutorsAndHealth(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/executors", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	var executors []ExecutorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&executors))

	ids := make([]string, 0, len(executors))
	for _, executor := range executors {
		ids = append(ids, executor.ID)
	}

	assert.Equal(t, []string{"httpjob", "log", "stub"}, ids)

	status, body := doRequest(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}
