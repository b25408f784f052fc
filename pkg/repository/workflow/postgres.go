package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pressflow/pressflow/pkg/models"
)

// PostgresRepository implements Repository on a Postgres database
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new Postgres-backed workflow repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &PostgresRepository{db: db}
}

// CreateWorkflow stores a workflow and its steps in one transaction
func (r *PostgresRepository) CreateWorkflow(ctx context.Context, wf *models.Workflow, steps []*models.StepInstance) error {
	if wf == nil {
		return errors.New("workflow cannot be nil")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	query := `INSERT INTO workflows (id, thread_id, template_id, status, current_step_id, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := tx.ExecContext(ctx, query,
		wf.ID,
		wf.ThreadID,
		wf.TemplateID,
		wf.Status,
		wf.CurrentStepID,
		wf.CreatedAt,
		wf.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	stepQuery := `INSERT INTO workflow_steps (id, workflow_id, type, name, status, step_order, dependencies, prompt, metadata, user_input, ai_response, created_at, updated_at)
				  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for _, step := range steps {
		step.CreatedAt = now
		step.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, stepQuery,
			step.ID,
			step.WorkflowID,
			step.Type,
			step.Name,
			step.Status,
			step.StepOrder,
			step.Dependencies,
			step.Prompt,
			step.Metadata,
			step.UserInput,
			step.AIResponse,
			step.CreatedAt,
			step.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create step %s: %w", step.Name, err)
		}
	}

	return tx.Commit()
}

// GetWorkflow retrieves a workflow by id
func (r *PostgresRepository) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	query := `SELECT id, thread_id, template_id, status, current_step_id, created_at, updated_at
			  FROM workflows WHERE id = $1`

	var wf models.Workflow
	if err := r.db.GetContext(ctx, &wf, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return &wf, nil
}

// UpdateWorkflow persists workflow status and current-step changes
func (r *PostgresRepository) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	if wf == nil {
		return errors.New("workflow cannot be nil")
	}

	wf.UpdatedAt = time.Now()

	query := `UPDATE workflows
			  SET status = $2, current_step_id = $3, updated_at = $4
			  WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, wf.ID, wf.Status, wf.CurrentStepID, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteWorkflow removes a workflow; its steps cascade
func (r *PostgresRepository) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByThread returns every workflow for a thread, newest first
func (r *PostgresRepository) ListByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Workflow, error) {
	query := `SELECT id, thread_id, template_id, status, current_step_id, created_at, updated_at
			  FROM workflows WHERE thread_id = $1 ORDER BY created_at DESC`

	var workflows []*models.Workflow
	if err := r.db.SelectContext(ctx, &workflows, query, threadID); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// ActiveByThread returns the active workflows for a thread, newest first
func (r *PostgresRepository) ActiveByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Workflow, error) {
	query := `SELECT id, thread_id, template_id, status, current_step_id, created_at, updated_at
			  FROM workflows WHERE thread_id = $1 AND status = $2 ORDER BY created_at DESC`

	var workflows []*models.Workflow
	if err := r.db.SelectContext(ctx, &workflows, query, threadID, models.WorkflowStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}

	return workflows, nil
}

// GetSteps returns a workflow's steps ordered by step order
func (r *PostgresRepository) GetSteps(ctx context.Context, workflowID uuid.UUID) ([]*models.StepInstance, error) {
	query := `SELECT id, workflow_id, type, name, status, step_order, dependencies, prompt, metadata, user_input, ai_response, created_at, updated_at
			  FROM workflow_steps WHERE workflow_id = $1 ORDER BY step_order ASC`

	var steps []*models.StepInstance
	if err := r.db.SelectContext(ctx, &steps, query, workflowID); err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}

	return steps, nil
}

// GetStep retrieves a single step by id
func (r *PostgresRepository) GetStep(ctx context.Context, id uuid.UUID) (*models.StepInstance, error) {
	query := `SELECT id, workflow_id, type, name, status, step_order, dependencies, prompt, metadata, user_input, ai_response, created_at, updated_at
			  FROM workflow_steps WHERE id = $1`

	var step models.StepInstance
	if err := r.db.GetContext(ctx, &step, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get step: %w", err)
	}

	return &step, nil
}

// UpdateStep persists step status, prompt, and metadata changes
func (r *PostgresRepository) UpdateStep(ctx context.Context, step *models.StepInstance) error {
	if step == nil {
		return errors.New("step cannot be nil")
	}

	step.UpdatedAt = time.Now()

	query := `UPDATE workflow_steps
			  SET status = $2, prompt = $3, metadata = $4, user_input = $5, ai_response = $6, updated_at = $7
			  WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		step.ID,
		step.Status,
		step.Prompt,
		step.Metadata,
		step.UserInput,
		step.AIResponse,
		step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
