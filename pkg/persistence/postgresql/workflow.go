package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
)

// WorkflowRepository stores each workflow document as a JSONB row.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows ordered by id.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDocument, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document FROM workflows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.WorkflowDocument, 0)

	for rows.Next() {
		workflow, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM workflows WHERE id = $1`, id)

	workflow, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// Save upserts a workflow; the last writer wins.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDocument) error {
	if err := persistence.ValidateWorkflowID("SaveWorkflow", workflow.ID); err != nil {
		return err
	}

	document, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	createdAt, updatedAt := workflow.CreatedAt, workflow.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO workflows (id, name, document, success_rate, estimated_gas, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , document = EXCLUDED.document
		  , success_rate = EXCLUDED.success_rate
		  , estimated_gas = EXCLUDED.estimated_gas
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		document,
		workflow.SuccessRate,
		workflow.EstimatedGas,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.WorkflowDocument, error) {
	var raw []byte

	if err := row.Scan(&raw); err != nil {
		return nil, err
	}

	var workflow models.WorkflowDocument
	if err := json.Unmarshal(raw, &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow document: %w", err)
	}

	return &workflow, nil
}
