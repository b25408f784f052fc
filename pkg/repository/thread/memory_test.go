package thread

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressflow/pressflow/pkg/models"
)

func TestMemoryThreadLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	thread := &models.Thread{ID: uuid.New(), Title: ""}
	require.NoError(t, repo.CreateThread(ctx, thread))

	thread.Title = "Acme product launch"
	require.NoError(t, repo.UpdateThread(ctx, thread))

	got, err := repo.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme product launch", got.Title)

	_, err = repo.GetThread(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRecentMessagesNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	threadID := uuid.New()

	for i := 0; i < 8; i++ {
		require.NoError(t, repo.AppendMessage(ctx, &models.ThreadMessage{
			ID:       uuid.New(),
			ThreadID: threadID,
			Role:     models.RoleUser,
			Content:  fmt.Sprintf("message %d", i),
		}))
	}

	recent, err := repo.RecentMessages(ctx, threadID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "message 7", recent[0].Content)
	assert.Equal(t, "message 3", recent[4].Content)
}
