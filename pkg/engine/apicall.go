package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/observability"
)

// APICallHandler runs non-interactive steps that produce intermediate
// content (research, enrichment) from the step goal and the information
// gathered so far. A returned error makes the dispatcher fall back to the
// step's static prompt.
type APICallHandler struct {
	client completion.Client
	logger observability.Logger
}

// NewAPICallHandler creates the handler for api_call steps
func NewAPICallHandler(client completion.Client, logger observability.Logger) *APICallHandler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &APICallHandler{client: client, logger: logger.WithPrefix("engine.apicall")}
}

// ProcessTurn implements StepHandler
func (h *APICallHandler) ProcessTurn(ctx context.Context, turn *Turn) (*StepResult, error) {
	info := gatherCollectedInformation(turn.Steps)
	snapshot, _ := json.Marshal(info)

	var b strings.Builder
	b.WriteString("Known information: " + string(snapshot) + "\n")
	if len(turn.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range turn.History {
			b.WriteString(string(msg.Role) + ": " + msg.Content + "\n")
		}
	}

	raw, err := h.client.Complete(ctx, turn.Def.Config.Goal, b.String(), completion.Options{
		Temperature: 0.5,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "api_call step %q failed", turn.Step.Name)
	}

	output := strings.TrimSpace(raw)
	turn.Step.AIResponse = output

	result := &StepResult{Complete: true}
	if !turn.Def.Config.Silent && output != "" {
		result.Messages = []string{output}
	}
	return result, nil
}
