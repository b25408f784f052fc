// Package completion wraps the external text-completion service behind a
// small client interface the engine can fake in tests.
package completion

import (
	"context"
	"time"
)

// Options tune a single completion request
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client is the text-completion capability the engine depends on
type Client interface {
	// Complete sends system instructions and user text to the completion
	// service and returns the raw response text.
	Complete(ctx context.Context, systemInstructions, userText string, opts Options) (string, error)
}
