package completion

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pressflow/pressflow/pkg/observability"
)

// BreakerClient wraps a Client with a circuit breaker so a failing
// completion service degrades fast instead of stalling every turn. Callers
// treat the returned error as a recoverable condition and fall back to a
// conservative in-band response.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// NewBreakerClient wraps the given client with a circuit breaker
func NewBreakerClient(inner Client, logger observability.Logger) *BreakerClient {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	settings := gobreaker.Settings{
		Name:        "completion",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Completion circuit breaker state change", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	}

	return &BreakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Complete implements Client
func (c *BreakerClient) Complete(ctx context.Context, systemInstructions, userText string, opts Options) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Complete(ctx, systemInstructions, userText, opts)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
