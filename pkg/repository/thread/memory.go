package thread

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pressflow/pressflow/pkg/models"
)

// MemoryRepository is an in-memory Repository used in tests and for
// running the engine without a database.
type MemoryRepository struct {
	mu       sync.RWMutex
	threads  map[uuid.UUID]*models.Thread
	messages map[uuid.UUID][]*models.ThreadMessage
}

// NewMemoryRepository creates an empty in-memory thread repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		threads:  make(map[uuid.UUID]*models.Thread),
		messages: make(map[uuid.UUID][]*models.ThreadMessage),
	}
}

// CreateThread stores a new thread
func (r *MemoryRepository) CreateThread(ctx context.Context, t *models.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	copied := *t
	r.threads[t.ID] = &copied
	return nil
}

// GetThread retrieves a thread by id
func (r *MemoryRepository) GetThread(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// UpdateThread persists title changes
func (r *MemoryRepository) UpdateThread(ctx context.Context, t *models.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.threads[t.ID]
	if !ok {
		return ErrNotFound
	}
	t.UpdatedAt = time.Now()
	t.CreatedAt = existing.CreatedAt
	copied := *t
	r.threads[t.ID] = &copied
	return nil
}

// AppendMessage adds a message to the thread's log
func (r *MemoryRepository) AppendMessage(ctx context.Context, msg *models.ThreadMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.CreatedAt = time.Now()
	copied := *msg
	r.messages[msg.ThreadID] = append(r.messages[msg.ThreadID], &copied)
	return nil
}

// RecentMessages returns up to limit messages, newest first
func (r *MemoryRepository) RecentMessages(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.ThreadMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.messages[threadID]
	var out []*models.ThreadMessage
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *log[i]
		out = append(out, &copied)
	}
	return out, nil
}
