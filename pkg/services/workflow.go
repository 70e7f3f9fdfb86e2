package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/flowplan/pkg/gateway"
	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
	"github.com/dukex/flowplan/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

var allowedSorts = []string{"id", "name", "created_at", "updated_at"}

// Workflow keeps one editing session per workflow and saves a document after
// every change. Concurrent writers of the same workflow are serialized by its
// session; across processes the last save wins.
type Workflow struct {
	store    persistence.Persistence
	gateway  *gateway.Gateway
	validate *validator.Validate
	opts     []workflow.Option
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*workflow.Session
}

// NewWorkflow creates a new workflow service. Session options (executor,
// publisher, tracer) are applied to every session the service opens.
func NewWorkflow(
	store persistence.Persistence,
	logger *slog.Logger,
	opts ...workflow.Option,
) *Workflow {
	return &Workflow{
		store:    store,
		gateway:  gateway.New(store, logger),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		logger:   logger.With("module", "workflow_service"),
		sessions: make(map[string]*workflow.Session),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.store == nil {
		return "Persistence layer not initialized", false
	}

	err := w.store.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.WorkflowDocument `json:"workflows"`
	TotalCount  int64                      `json:"total_count"`
	HasNextPage bool                       `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with sorting and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	docs, err := w.gateway.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	slices.SortStableFunc(docs, func(a, b *models.WorkflowDocument) int {
		var c int

		switch req.SortBy {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = strings.Compare(a.ID, b.ID)
		}

		if req.SortOrder == "desc" {
			return -c
		}

		return c
	})

	total := len(docs)
	start := min(req.Offset, total)
	end := min(start+req.Limit, total)

	return &ListWorkflowsResponse{
		Workflows:   docs[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit == 0 {
		req.Limit = 20
	}

	if req.SortBy == "" {
		req.SortBy = "id"
	}

	if req.SortOrder == "" {
		req.SortOrder = "asc"
	}

	if err := w.validate.Struct(req); err != nil {
		return NewValidationError("validateListWorkflowsRequest", "invalid_pagination", err.Error(), ErrInvalidRequest)
	}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"invalid_sort_field",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"invalid_sort_order",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	return nil
}

// FetchByID returns the stored document of a workflow.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	if err := persistence.ValidateWorkflowID("FetchByID", id); err != nil {
		return nil, err
	}

	return w.store.WorkflowByID(ctx, id)
}

// CreateWorkflowRequest describes a new, empty workflow.
type CreateWorkflowRequest struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"                  validate:"required,min=3"`
	Description string         `json:"description"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// Create opens a session on a new graph and stores its first document.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*models.WorkflowDocument, error) {
	if err := w.validate.Struct(req); err != nil {
		return nil, NewValidationError("Create", "invalid_workflow", err.Error(), ErrInvalidRequest)
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	if err := persistence.ValidateWorkflowID("Create", id); err != nil {
		return nil, NewValidationError("Create", "invalid_workflow_id", err.Error(), ErrInvalidRequest)
	}

	_, err := w.store.WorkflowByID(ctx, id)

	switch {
	case err == nil:
		return nil, &ServiceError{Op: "Create", Code: "workflow_exists", Err: fmt.Errorf("%w: %s", ErrWorkflowExists, id)}
	case !persistence.IsWorkflowNotFound(err):
		return nil, fmt.Errorf("failed to check workflow %s: %w", id, err)
	}

	g := graph.New(id, req.Name)
	if req.Description != "" {
		g.Describe(req.Description)
	}

	for name, value := range req.Variables {
		g.SetVariable(name, value)
	}

	session := workflow.NewSession(ctx, g, w.logger, w.opts...)

	doc, err := w.gateway.Save(ctx, session)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.sessions[id] = session
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", id)

	return doc, nil
}

// UpdateWorkflowRequest changes workflow level fields. Nil fields are left unchanged;
// a non-nil Variables map replaces all workflow variables.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string        `json:"description,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
}

func (w *Workflow) Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*models.WorkflowDocument, error) {
	if err := w.validate.Struct(req); err != nil {
		return nil, NewValidationError("Update", "invalid_workflow", err.Error(), ErrInvalidRequest)
	}

	return w.mutate(ctx, id, func(session *workflow.Session) error {
		var name, description string
		if req.Name != nil {
			name = *req.Name
		}

		if req.Description != nil {
			description = *req.Description
		}

		if name != "" || description != "" {
			if _, err := session.Rename(ctx, name, description); err != nil {
				return err
			}
		}

		if req.Variables == nil {
			return nil
		}

		for existing := range session.Graph().Variables() {
			if _, keep := req.Variables[existing]; !keep {
				if _, err := session.DeleteVariable(ctx, existing); err != nil {
					return err
				}
			}
		}

		for name, value := range req.Variables {
			if _, err := session.SetVariable(ctx, name, value); err != nil {
				return err
			}
		}

		return nil
	})
}

// Delete removes the stored document and drops the cached session.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := persistence.ValidateWorkflowID("Delete", id); err != nil {
		return err
	}

	if err := w.gateway.Delete(ctx, id); err != nil {
		return err
	}

	w.mu.Lock()
	delete(w.sessions, id)
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)

	return nil
}

// PlanResponse is the planning state of a workflow.
type PlanResponse struct {
	Report workflow.Report `json:"report"`
	// LastValid is the most recent valid report when the current graph is invalid.
	LastValid *workflow.Report `json:"last_valid,omitempty"`
	// Schedules previews the next fire times of scheduled triggers.
	Schedules map[string][]string `json:"schedules,omitempty"`
}

func (w *Workflow) Plan(ctx context.Context, id string) (*PlanResponse, error) {
	session, err := w.session(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &PlanResponse{Report: session.Report()}

	if !resp.Report.Valid {
		if lastValid, ok := session.LastValid(); ok {
			resp.LastValid = &lastValid
		}
	}

	schedules, err := NextFireTimes(session.Graph(), nowUTC(), scheduledPreviewCount)
	if err != nil {
		return nil, err
	}

	if len(schedules) > 0 {
		resp.Schedules = schedules
	}

	return resp, nil
}

// Simulate runs the workflow's current plan and stores the resulting node statuses.
func (w *Workflow) Simulate(ctx context.Context, id string, mode models.RunMode) (*models.RunResult, error) {
	if mode == "" {
		mode = models.RunModeDryRun
	}

	if mode != models.RunModeDryRun && mode != models.RunModeLive {
		return nil, NewValidationError("Simulate", "invalid_run_mode",
			fmt.Sprintf("invalid run mode '%s', allowed: %s, %s", mode, models.RunModeDryRun, models.RunModeLive),
			ErrInvalidRunMode)
	}

	session, err := w.session(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := session.Simulate(ctx, mode)
	if err != nil {
		return nil, err
	}

	if _, err := w.gateway.Save(ctx, session); err != nil {
		return nil, err
	}

	return &result, nil
}

// mutate applies a change to a workflow's session and saves the new document.
func (w *Workflow) mutate(ctx context.Context, id string, apply func(*workflow.Session) error) (*models.WorkflowDocument, error) {
	session, err := w.session(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := apply(session); err != nil {
		return nil, err
	}

	return w.gateway.Save(ctx, session)
}

// session returns the cached session of a workflow, loading it on first use.
func (w *Workflow) session(ctx context.Context, id string) (*workflow.Session, error) {
	if err := persistence.ValidateWorkflowID("session", id); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if session, ok := w.sessions[id]; ok {
		return session, nil
	}

	session, _, err := w.gateway.Load(ctx, id, w.opts...)
	if err != nil {
		return nil, err
	}

	w.sessions[id] = session

	return session, nil
}
