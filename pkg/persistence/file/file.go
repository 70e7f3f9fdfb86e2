// Package file provides file-based persistence for workflow documents.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDocument, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowDocument) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return fp.workflowRepo.Delete(ctx, id)
}
