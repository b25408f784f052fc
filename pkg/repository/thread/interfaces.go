// Package thread provides persistence for conversation threads and their
// message logs.
package thread

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pressflow/pressflow/pkg/models"
)

// ErrNotFound is returned when a thread does not exist
var ErrNotFound = errors.New("not found")

// Repository persists threads and their messages
type Repository interface {
	// CreateThread stores a new thread
	CreateThread(ctx context.Context, t *models.Thread) error

	// GetThread retrieves a thread by id; ErrNotFound if absent
	GetThread(ctx context.Context, id uuid.UUID) (*models.Thread, error)

	// UpdateThread persists title changes
	UpdateThread(ctx context.Context, t *models.Thread) error

	// AppendMessage adds a message to the thread's log
	AppendMessage(ctx context.Context, msg *models.ThreadMessage) error

	// RecentMessages returns up to limit messages, newest first
	RecentMessages(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.ThreadMessage, error)
}
