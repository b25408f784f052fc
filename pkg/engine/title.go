package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/models"
	"github.com/pressflow/pressflow/pkg/observability"
	threadrepo "github.com/pressflow/pressflow/pkg/repository/thread"
)

const fallbackThreadTitle = "New conversation"

// titleResponse is the JSON contract for title generation
type titleResponse struct {
	Title string `json:"title"`
}

// TitleHandler names the conversation thread from its opening messages.
// Always auto-executed and silent apart from a bookkeeping message; a
// failing completion service degrades to a default title rather than
// stalling the workflow.
type TitleHandler struct {
	client  completion.Client
	threads threadrepo.Repository
	logger  observability.Logger
}

// NewTitleHandler creates the handler for generate_thread_title steps
func NewTitleHandler(client completion.Client, threads threadrepo.Repository, logger observability.Logger) *TitleHandler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &TitleHandler{client: client, threads: threads, logger: logger.WithPrefix("engine.title")}
}

// ProcessTurn implements StepHandler
func (h *TitleHandler) ProcessTurn(ctx context.Context, turn *Turn) (*StepResult, error) {
	title := h.generateTitle(ctx, turn)

	thread, err := h.threads.GetThread(ctx, turn.Workflow.ThreadID)
	if err != nil {
		h.logger.Warn("Thread lookup failed; skipping rename", map[string]interface{}{
			"thread_id": turn.Workflow.ThreadID,
			"error":     err.Error(),
		})
		return &StepResult{Complete: true}, nil
	}

	thread.Title = title
	if err := h.threads.UpdateThread(ctx, thread); err != nil {
		h.logger.Warn("Thread rename failed", map[string]interface{}{
			"thread_id": thread.ID,
			"error":     err.Error(),
		})
		return &StepResult{Complete: true}, nil
	}

	turn.Step.AIResponse = title
	return &StepResult{
		Complete: true,
		Messages: []string{fmt.Sprintf("%s Thread renamed to %q", models.SystemPrefix, title)},
	}, nil
}

func (h *TitleHandler) generateTitle(ctx context.Context, turn *Turn) string {
	var opening string
	for _, msg := range turn.History {
		if msg.Role == models.RoleUser {
			opening = msg.Content
			break
		}
	}
	if opening == "" {
		opening = turn.Input
	}
	if strings.TrimSpace(opening) == "" || opening == AutoInput {
		return fallbackThreadTitle
	}

	raw, err := h.client.Complete(ctx, titleSystemInstructions, opening, completion.Options{
		Temperature: 0.3,
		MaxTokens:   60,
	})
	if err != nil {
		h.logger.Warn("Title generation failed; using default", map[string]interface{}{
			"error": err.Error(),
		})
		return fallbackThreadTitle
	}

	var resp titleResponse
	if err := completion.DecodeObject(raw, &resp); err == nil && strings.TrimSpace(resp.Title) != "" {
		return strings.TrimSpace(resp.Title)
	}

	title := strings.TrimSpace(strings.Trim(raw, "\"` \n"))
	if title == "" {
		return fallbackThreadTitle
	}
	return title
}

const titleSystemInstructions = `Name this conversation from the user's opening message.
Respond with ONLY a JSON object shaped exactly as {"title": string}: three to eight words,
no quotes inside the title, no trailing punctuation.`
