// Package gateway converts workflow sessions to persisted documents and back.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
	"github.com/dukex/flowplan/pkg/workflow"
)

// Gateway stores workflow documents keyed by id. Saves are last-writer-wins.
type Gateway struct {
	store  persistence.Persistence
	base   *slog.Logger
	logger *slog.Logger
	now    func() time.Time
}

func New(store persistence.Persistence, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:  store,
		base:   logger,
		logger: logger.With("module", "gateway"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Document encodes a session without storing it.
func Document(session *workflow.Session) *models.WorkflowDocument {
	var lastRun *models.RunResult
	if run, ok := session.LastRun(); ok {
		lastRun = &run
	}

	return Encode(session.Graph(), session.Report(), lastRun)
}

// Save encodes and stores a session. CreatedAt is kept from the stored copy when there is one.
func (gw *Gateway) Save(ctx context.Context, session *workflow.Session) (*models.WorkflowDocument, error) {
	doc := Document(session)
	now := gw.now()

	doc.CreatedAt = now
	doc.UpdatedAt = now

	existing, err := gw.store.WorkflowByID(ctx, doc.ID)

	switch {
	case err == nil:
		doc.CreatedAt = existing.CreatedAt
		doc.Metadata = existing.Metadata
	case !persistence.IsWorkflowNotFound(err):
		return nil, fmt.Errorf("failed to read workflow %s: %w", doc.ID, err)
	}

	if err := gw.store.SaveWorkflow(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save workflow %s: %w", doc.ID, err)
	}

	gw.logger.DebugContext(ctx, "Workflow saved", "workflow_id", doc.ID, "nodes", len(doc.Nodes))

	return doc, nil
}

// Load reads a document and opens a session on it.
func (gw *Gateway) Load(ctx context.Context, id string, opts ...workflow.Option) (*workflow.Session, *models.WorkflowDocument, error) {
	doc, err := gw.store.WorkflowByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	g, err := Decode(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	return workflow.NewSession(ctx, g, gw.base, opts...), doc, nil
}

func (gw *Gateway) Delete(ctx context.Context, id string) error {
	return gw.store.DeleteWorkflow(ctx, id)
}

func (gw *Gateway) List(ctx context.Context) ([]*models.WorkflowDocument, error) {
	return gw.store.Workflows(ctx)
}
