package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/pressflow/pressflow/pkg/completion"
)

// scriptedClient replays a queue of canned completion replies in order.
type scriptedClient struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
}

type scriptedReply struct {
	out string
	err error
}

func (c *scriptedClient) push(out string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, scriptedReply{out: out})
}

func (c *scriptedClient) pushErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, scriptedReply{err: err})
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *scriptedClient) Complete(ctx context.Context, systemInstructions, userText string, opts completion.Options) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.replies) == 0 {
		return "", errors.New("scripted client: no reply queued")
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply.out, reply.err
}
