// Package engine implements the workflow execution engine: the step state
// machine, dependency resolution, the conversational JSON-extraction
// protocol, the generate/review loop, auto-execution of unattended steps,
// and chaining between workflows on a thread.
package engine

import (
	"context"

	"github.com/pressflow/pressflow/pkg/models"
)

// AutoInput is the synthetic input the dispatcher feeds to auto-executed
// steps in place of a user message.
const AutoInput = "auto"

// Turn carries everything a handler needs to process one conversational
// turn of a step.
type Turn struct {
	Workflow *models.Workflow
	Step     *models.StepInstance
	Def      *models.StepDefinition
	Steps    []*models.StepInstance
	Input    string
	// History holds the thread's recent messages, oldest first
	History []*models.ThreadMessage
}

// StepResult is what a handler reports back after one turn
type StepResult struct {
	// Complete marks the step COMPLETE; the dispatcher then advances
	Complete bool

	// Messages are emitted to the thread in order
	Messages []string

	// SuggestedNextStep, when it names a real step, overrides the
	// resolver's order-based choice.
	SuggestedNextStep string

	// Touched lists additional steps the handler mutated (beyond
	// Turn.Step) that must be persisted.
	Touched []*models.StepInstance
}

// StepHandler processes one turn of a step. Implementations must not
// surface completion-service parse errors to the caller; they degrade to a
// conservative result instead. A returned error means the handler could
// not run at all, which the dispatcher treats as a signal to fall back to
// the interactive path.
type StepHandler interface {
	ProcessTurn(ctx context.Context, turn *Turn) (*StepResult, error)
}
