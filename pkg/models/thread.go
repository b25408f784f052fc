package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Thread is a conversation a user holds with the system. Workflows attach
// to a thread; at most one of them is active at a time.
type Thread struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MessageRole tags who produced a thread message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Bookkeeping prefixes on outbound messages so a consuming UI can filter
// them from user-visible content.
const (
	SystemPrefix = "[System]"
	StatusPrefix = "[Workflow Status]"
)

// ThreadMessage is one entry in a thread's message log
type ThreadMessage struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	ThreadID  uuid.UUID   `json:"thread_id" db:"thread_id"`
	Role      MessageRole `json:"role" db:"role"`
	Content   string      `json:"content" db:"content"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// IsBookkeeping reports whether the message carries an internal prefix
func (m *ThreadMessage) IsBookkeeping() bool {
	return strings.HasPrefix(m.Content, SystemPrefix) || strings.HasPrefix(m.Content, StatusPrefix)
}
