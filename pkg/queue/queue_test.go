package queue

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressflow/pressflow/pkg/observability"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	q := New(2, 16, observability.NewNoopLogger())
	defer q.Close()

	var processed atomic.Int64
	q.Register("notify", func(ctx context.Context, payload json.RawMessage) error {
		processed.Add(1)
		return nil
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), "notify", json.RawMessage(`{}`), fastPolicy(1)))
	}

	assert.Eventually(t, func() bool { return processed.Load() == 10 },
		time.Second, 5*time.Millisecond)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := New(1, 4, observability.NewNoopLogger())
	defer q.Close()

	var calls atomic.Int64
	q.Register("flaky", func(ctx context.Context, payload json.RawMessage) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), "flaky", nil, fastPolicy(5)))

	assert.Eventually(t, func() bool { return calls.Load() == 3 },
		time.Second, 5*time.Millisecond)
}

func TestQueueBoundsAttempts(t *testing.T) {
	q := New(1, 4, observability.NewNoopLogger())

	var calls atomic.Int64
	done := make(chan struct{})
	var once sync.Once
	q.Register("doomed", func(ctx context.Context, payload json.RawMessage) error {
		calls.Add(1)
		if calls.Load() >= 3 {
			once.Do(func() { close(done) })
		}
		return errors.New("permanent")
	})

	require.NoError(t, q.Enqueue(context.Background(), "doomed", nil, fastPolicy(3)))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never reached attempt limit")
	}
	q.Close()
	assert.Equal(t, int64(3), calls.Load())
}

func TestEnqueueUnknownType(t *testing.T) {
	q := New(1, 4, observability.NewNoopLogger())
	defer q.Close()

	err := q.Enqueue(context.Background(), "unregistered", nil, fastPolicy(1))
	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestEnqueueAfterClose(t *testing.T) {
	q := New(1, 4, observability.NewNoopLogger())
	q.Register("noop", func(ctx context.Context, payload json.RawMessage) error { return nil })
	q.Close()

	err := q.Enqueue(context.Background(), "noop", nil, fastPolicy(1))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestCloseUnblocksPendingEnqueue(t *testing.T) {
	q := New(1, 1, observability.NewNoopLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	q.Register("slow", func(ctx context.Context, payload json.RawMessage) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), "slow", nil, fastPolicy(1)))
	<-started // worker is now stalled in the handler
	require.NoError(t, q.Enqueue(context.Background(), "slow", nil, fastPolicy(1)))

	// Buffer is full, so this one blocks in the send
	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Enqueue(context.Background(), "slow", nil, fastPolicy(1))
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("enqueue stayed blocked through close")
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close never returned")
	}
}

func TestCloseDrainsBufferedJobs(t *testing.T) {
	q := New(1, 8, observability.NewNoopLogger())

	release := make(chan struct{})
	var processed atomic.Int64
	q.Register("drain", func(ctx context.Context, payload json.RawMessage) error {
		<-release
		processed.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), "drain", nil, fastPolicy(1)))
	}

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	close(release)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close never returned")
	}
	assert.Equal(t, int64(5), processed.Load())
}
