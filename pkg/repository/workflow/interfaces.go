// Package workflow provides persistence for workflow and step instances
package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pressflow/pressflow/pkg/models"
)

// ErrNotFound is returned when a workflow or step does not exist
var ErrNotFound = errors.New("not found")

// Repository persists workflows and their step instances
type Repository interface {
	// CreateWorkflow stores a workflow together with its full step set
	CreateWorkflow(ctx context.Context, wf *models.Workflow, steps []*models.StepInstance) error

	// GetWorkflow retrieves a workflow by id; ErrNotFound if absent
	GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error)

	// UpdateWorkflow persists workflow status and current-step changes
	UpdateWorkflow(ctx context.Context, wf *models.Workflow) error

	// DeleteWorkflow removes a workflow and its steps
	DeleteWorkflow(ctx context.Context, id uuid.UUID) error

	// ListByThread returns every workflow for a thread, newest first
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Workflow, error)

	// ActiveByThread returns the active workflows for a thread, newest
	// first. More than one entry indicates an inconsistency the caller
	// must recover from.
	ActiveByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Workflow, error)

	// GetSteps returns a workflow's steps ordered by step order
	GetSteps(ctx context.Context, workflowID uuid.UUID) ([]*models.StepInstance, error)

	// GetStep retrieves a single step by id; ErrNotFound if absent
	GetStep(ctx context.Context, id uuid.UUID) (*models.StepInstance, error)

	// UpdateStep persists step status, prompt, and metadata changes
	UpdateStep(ctx context.Context, step *models.StepInstance) error
}
