package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pressflow/pressflow/pkg/models"
)

// MemoryRepository is an in-memory Repository used in tests and for
// running the engine without a database.
type MemoryRepository struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]*models.Workflow
	steps     map[uuid.UUID]*models.StepInstance
}

// NewMemoryRepository creates an empty in-memory workflow repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		workflows: make(map[uuid.UUID]*models.Workflow),
		steps:     make(map[uuid.UUID]*models.StepInstance),
	}
}

// CreateWorkflow stores a workflow and its steps
func (r *MemoryRepository) CreateWorkflow(ctx context.Context, wf *models.Workflow, steps []*models.StepInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	copied := *wf
	r.workflows[wf.ID] = &copied

	for _, step := range steps {
		step.CreatedAt = now
		step.UpdatedAt = now
		stepCopy := *step
		r.steps[step.ID] = &stepCopy
	}

	return nil
}

// GetWorkflow retrieves a workflow by id
func (r *MemoryRepository) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *wf
	return &copied, nil
}

// UpdateWorkflow persists workflow changes
func (r *MemoryRepository) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.workflows[wf.ID]
	if !ok {
		return ErrNotFound
	}
	wf.UpdatedAt = time.Now()
	wf.CreatedAt = existing.CreatedAt
	copied := *wf
	r.workflows[wf.ID] = &copied
	return nil
}

// DeleteWorkflow removes a workflow and its steps
func (r *MemoryRepository) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(r.workflows, id)
	for stepID, step := range r.steps {
		if step.WorkflowID == id {
			delete(r.steps, stepID)
		}
	}
	return nil
}

// ListByThread returns every workflow for a thread, newest first
func (r *MemoryRepository) ListByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Workflow
	for _, wf := range r.workflows {
		if wf.ThreadID == threadID {
			copied := *wf
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ActiveByThread returns the active workflows for a thread, newest first
func (r *MemoryRepository) ActiveByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Workflow, error) {
	all, err := r.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	var out []*models.Workflow
	for _, wf := range all {
		if wf.Status == models.WorkflowStatusActive {
			out = append(out, wf)
		}
	}
	return out, nil
}

// GetSteps returns a workflow's steps ordered by step order
func (r *MemoryRepository) GetSteps(ctx context.Context, workflowID uuid.UUID) ([]*models.StepInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.StepInstance
	for _, step := range r.steps {
		if step.WorkflowID == workflowID {
			copied := *step
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

// GetStep retrieves a single step by id
func (r *MemoryRepository) GetStep(ctx context.Context, id uuid.UUID) (*models.StepInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, ok := r.steps[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *step
	return &copied, nil
}

// UpdateStep persists step changes
func (r *MemoryRepository) UpdateStep(ctx context.Context, step *models.StepInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.steps[step.ID]
	if !ok {
		return ErrNotFound
	}
	step.UpdatedAt = time.Now()
	step.CreatedAt = existing.CreatedAt
	copied := *step
	r.steps[step.ID] = &copied
	return nil
}
