package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressflow/pressflow/pkg/models"
)

func TestMemoryWorkflowLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	threadID := uuid.New()
	wf := &models.Workflow{
		ID:         uuid.New(),
		ThreadID:   threadID,
		TemplateID: models.TemplatePressRelease,
		Status:     models.WorkflowStatusActive,
	}
	steps := []*models.StepInstance{
		{ID: uuid.New(), WorkflowID: wf.ID, Name: "Collect Information", Type: models.StepTypeJSONDialog, Status: models.StepStatusInProgress, StepOrder: 0},
		{ID: uuid.New(), WorkflowID: wf.ID, Name: "Generate Press Release", Type: models.StepTypeAssetCreation, Status: models.StepStatusPending, StepOrder: 1},
	}

	require.NoError(t, repo.CreateWorkflow(ctx, wf, steps))

	got, err := repo.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, got.Status)

	gotSteps, err := repo.GetSteps(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, gotSteps, 2)
	assert.Equal(t, "Collect Information", gotSteps[0].Name)

	gotSteps[0].Status = models.StepStatusComplete
	require.NoError(t, repo.UpdateStep(ctx, gotSteps[0]))

	reloaded, err := repo.GetStep(ctx, gotSteps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusComplete, reloaded.Status)

	wf.Status = models.WorkflowStatusCompleted
	require.NoError(t, repo.UpdateWorkflow(ctx, wf))

	active, err := repo.ActiveByThread(ctx, threadID)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.DeleteWorkflow(ctx, wf.ID))
	_, err = repo.GetWorkflow(ctx, wf.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetStep(ctx, steps[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryActiveByThreadNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	threadID := uuid.New()

	older := &models.Workflow{ID: uuid.New(), ThreadID: threadID, Status: models.WorkflowStatusActive}
	require.NoError(t, repo.CreateWorkflow(ctx, older, nil))

	// Force distinct creation times
	repo.mu.Lock()
	repo.workflows[older.ID].CreatedAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	newer := &models.Workflow{ID: uuid.New(), ThreadID: threadID, Status: models.WorkflowStatusActive}
	require.NoError(t, repo.CreateWorkflow(ctx, newer, nil))

	active, err := repo.ActiveByThread(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, newer.ID, active[0].ID)
}

func TestMemoryNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetWorkflow(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.UpdateWorkflow(ctx, &models.Workflow{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.UpdateStep(ctx, &models.StepInstance{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}
