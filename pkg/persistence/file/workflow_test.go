package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(id string) *models.WorkflowDocument {
	return &models.WorkflowDocument{
		ID:   id,
		Name: "Workflow " + id,
		Nodes: []models.DocumentNode{
			{ID: "trigger1", Type: models.NodeKindTrigger, Name: "Start", Parameters: map[string]any{}},
		},
		Connections:  []models.Connection{},
		Variables:    map[string]any{"threshold": 10.0},
		EstimatedGas: "0.002 FLOW",
		SuccessRate:  98.5,
	}
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := t.Context()

	doc := testDocument("wf-1")
	require.NoError(t, repo.Save(ctx, doc))

	loaded, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestWorkflowRepository_LastWriterWins(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := t.Context()

	first := testDocument("wf-1")
	require.NoError(t, repo.Save(ctx, first))

	second := testDocument("wf-1")
	second.Name = "Renamed"
	require.NoError(t, repo.Save(ctx, second))

	loaded, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkflowRepository_GetAllSorted(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := t.Context()

	for _, id := range []string{"wf-c", "wf-a", "wf-b"} {
		require.NoError(t, repo.Save(ctx, testDocument(id)))
	}

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "wf-a", all[0].ID)
	assert.Equal(t, "wf-b", all[1].ID)
	assert.Equal(t, "wf-c", all[2].ID)
}

func TestWorkflowRepository_GetAllEmpty(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	all, err := repo.GetAll(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := t.Context()

	_, err := repo.GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = repo.Delete(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_Delete(t *testing.T) {
	root := t.TempDir()
	repo := NewWorkflowRepository(root)
	ctx := t.Context()

	require.NoError(t, repo.Save(ctx, testDocument("wf-1")))
	require.NoError(t, repo.Delete(ctx, "wf-1"))

	_, err := os.Stat(filepath.Join(root, "workflows", "wf-1.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorkflowRepository_RejectsTraversal(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	err := repo.Save(t.Context(), testDocument("../escape"))
	require.ErrorIs(t, err, persistence.ErrInvalidWorkflowID)
}

func TestPersistence_HealthCheck(t *testing.T) {
	root := t.TempDir()

	p := NewPersistence("file://" + root)
	require.NoError(t, p.HealthCheck(t.Context()))

	missing := NewPersistence(filepath.Join(root, "missing"))
	require.Error(t, missing.HealthCheck(t.Context()))
}
