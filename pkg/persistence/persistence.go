// Package persistence provides the storage abstraction for workflow documents.
package persistence

import (
	"context"

	"github.com/dukex/flowplan/pkg/models"
)

// Persistence stores workflow documents keyed by workflow id. Saves are
// last-writer-wins; no backend performs conflict resolution.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.WorkflowDocument, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDocument) error
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDocument, error)
	DeleteWorkflow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
