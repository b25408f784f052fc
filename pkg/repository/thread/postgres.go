package thread

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

// NewPostgresRepository creates a new Postgres-backed thread repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &PostgresRepository{db: db}
}

// CreateThread stores a new thread
func (r *PostgresRepository) CreateThread(ctx context.Context, t *models.Thread) error {
	if t == nil {
		return errors.New("thread cannot be nil")
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `INSERT INTO threads (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Title, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

// GetThread retrieves a thread by id
func (r *PostgresRepository) GetThread(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	query := `SELECT id, title, created_at, updated_at FROM threads WHERE id = $1`

	var t models.Thread
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &t, nil
}

// UpdateThread persists title changes
func (r *PostgresRepository) UpdateThread(ctx context.Context, t *models.Thread) error {
	if t == nil {
		return errors.New("thread cannot be nil")
	}

	t.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx,
		`UPDATE threads SET title = $2, updated_at = $3 WHERE id = $1`,
		t.ID, t.Title, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update thread: %w", err)
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

// AppendMessage adds a message to the thread's log
func (r *PostgresRepository) AppendMessage(ctx context.Context, msg *models.ThreadMessage) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}

	msg.CreatedAt = time.Now()

	query := `INSERT INTO thread_messages (id, thread_id, role, content, created_at)
			  VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.ThreadID, msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages, newest first
func (r *PostgresRepository) RecentMessages(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.ThreadMessage, error) {
	query := `SELECT id, thread_id, role, content, created_at
			  FROM thread_messages WHERE thread_id = $1
			  ORDER BY created_at DESC LIMIT $2`

	var messages []*models.ThreadMessage
	if err := r.db.SelectContext(ctx, &messages, query, threadID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}
	return messages, nil
}
