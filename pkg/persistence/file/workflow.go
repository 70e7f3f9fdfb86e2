package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
)

// WorkflowRepository stores one JSON document per workflow under root/workflows.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.dir(), id+".json")
}

// GetAll returns every stored workflow sorted by id.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDocument, error) {
	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.WorkflowDocument, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflow, err := wr.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowDocument, error) {
	if err := persistence.ValidateWorkflowID("WorkflowByID", id); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(wr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	var workflow models.WorkflowDocument

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// Save writes a workflow to the file system, replacing any previous version.
// The file is written to a temporary name and renamed so readers never see a
// partial document.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.WorkflowDocument) error {
	if err := persistence.ValidateWorkflowID("SaveWorkflow", workflow.ID); err != nil {
		return err
	}

	err := os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	tmp, err := os.CreateTemp(wr.dir(), workflow.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for workflow %s: %w", workflow.ID, err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	return os.Rename(tmp.Name(), wr.path(workflow.ID))
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	if err := persistence.ValidateWorkflowID("DeleteWorkflow", id); err != nil {
		return err
	}

	err := os.Remove(wr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}
