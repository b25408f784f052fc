package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/models"
	"github.com/pressflow/pressflow/pkg/observability"
)

// dialogClarifyQuestion is the fallback emitted whenever the completion
// service fails or returns something unparseable. The user never sees a
// parse error.
const dialogClarifyQuestion = "Sorry, I didn't quite catch that. Could you rephrase, or add a bit more detail?"

// dialogResponse is the JSON contract a json_dialog completion must emit
type dialogResponse struct {
	IsComplete           *bool                  `json:"isComplete"`
	CollectedInformation map[string]interface{} `json:"collectedInformation"`
	MissingInformation   []string               `json:"missingInformation"`
	NextQuestion         *string                `json:"nextQuestion"`
	SuggestedNextStep    *string                `json:"suggestedNextStep"`
}

// JSONDialogHandler drives one conversational turn of a json_dialog step:
// it sends accumulated context to the completion service, parses the
// constrained JSON contract, merges collected information, and decides
// completion.
type JSONDialogHandler struct {
	client completion.Client
	logger observability.Logger
}

// NewJSONDialogHandler creates the handler for json_dialog steps
func NewJSONDialogHandler(client completion.Client, logger observability.Logger) *JSONDialogHandler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &JSONDialogHandler{client: client, logger: logger.WithPrefix("engine.dialog")}
}

// ProcessTurn implements StepHandler
func (h *JSONDialogHandler) ProcessTurn(ctx context.Context, turn *Turn) (*StepResult, error) {
	step := turn.Step
	info := models.CollectedInformation(step.CollectedInformation()).Copy()

	// A prior turn offered to proceed with partial information; only an
	// explicit affirmative now converts that into a forced completion.
	if step.MetaBool(models.MetaProceedOffered) && isAffirmative(turn.Input) {
		h.logger.Info("Proceeding with partial information on user confirmation", map[string]interface{}{
			"step": step.Name,
		})
		step.SetCollectedInformation(info)
		h.recordSelections(step, info)
		return &StepResult{
			Complete: true,
			Messages: []string{"Great, let's move ahead with what we have."},
		}, nil
	}

	raw, err := h.client.Complete(ctx, h.systemInstructions(turn, info), h.userText(turn), completion.Options{
		Temperature: 0.2,
	})
	if err != nil {
		h.logger.Warn("Completion call failed; degrading to clarifying question", map[string]interface{}{
			"step":  step.Name,
			"error": err.Error(),
		})
		return h.fallback(step, info), nil
	}

	var resp dialogResponse
	if err := completion.DecodeObject(raw, &resp); err != nil || resp.IsComplete == nil || resp.CollectedInformation == nil {
		h.logger.Warn("Unparseable dialog response; degrading to clarifying question", map[string]interface{}{
			"step": step.Name,
		})
		return h.fallback(step, info), nil
	}

	merged := info.Merge(resp.CollectedInformation)
	step.SetCollectedInformation(merged)

	result := &StepResult{}
	if resp.SuggestedNextStep != nil {
		result.SuggestedNextStep = *resp.SuggestedNextStep
	}

	if *resp.IsComplete {
		h.recordSelections(step, merged)
		result.Complete = true
		return result, nil
	}

	// Enough to proceed but not 100% complete: offer the early exit once,
	// then wait for the user's answer on a later turn.
	essential := turn.Def.Config.EssentialFields
	if len(essential) > 0 && merged.HasAll(essential) && !step.MetaBool(models.MetaProceedOffered) {
		step.SetMeta(models.MetaProceedOffered, true)
		missing := strings.Join(resp.MissingInformation, ", ")
		offer := "I have enough to get started."
		if missing != "" {
			offer += " We could still cover: " + missing + "."
		}
		offer += " Want me to proceed anyway, or keep going?"
		result.Messages = []string{offer}
		return result, nil
	}

	question := dialogClarifyQuestion
	if resp.NextQuestion != nil && strings.TrimSpace(*resp.NextQuestion) != "" {
		question = *resp.NextQuestion
	}
	result.Messages = []string{question}
	return result, nil
}

func (h *JSONDialogHandler) fallback(step *models.StepInstance, info models.CollectedInformation) *StepResult {
	step.SetCollectedInformation(info)
	return &StepResult{
		Complete: false,
		Messages: []string{dialogClarifyQuestion},
	}
}

// recordSelections lifts well-known fields out of the collected map onto
// step metadata so later components need not re-parse it.
func (h *JSONDialogHandler) recordSelections(step *models.StepInstance, info models.CollectedInformation) {
	if selected, ok := info["selectedWorkflow"].(string); ok && selected != "" {
		step.SetMeta(models.MetaSelectedWorkflow, selected)
	}
	if assetType, ok := info["selectedAssetType"].(string); ok && assetType != "" {
		step.SetMeta(models.MetaSelectedAssetType, assetType)
	}
}

func (h *JSONDialogHandler) systemInstructions(turn *Turn, info models.CollectedInformation) string {
	var b strings.Builder
	b.WriteString("You are an information-gathering assistant inside a guided workflow.\n")
	b.WriteString("Goal: " + turn.Def.Config.Goal + "\n")
	if turn.Def.Config.ExtractionInstructions != "" {
		b.WriteString("Extraction instructions: " + turn.Def.Config.ExtractionInstructions + "\n")
	}

	snapshot, _ := json.Marshal(info)
	b.WriteString("Information collected so far: " + string(snapshot) + "\n")

	b.WriteString(`Respond with ONLY a JSON object, no prose and no code fences, shaped exactly as:
{"isComplete": boolean, "collectedInformation": {...}, "missingInformation": [string...], "nextQuestion": string|null, "suggestedNextStep": string|null}
Rules: fold the user's new message into collectedInformation without dropping existing fields;
set isComplete true only when every required field is gathered; otherwise put one short,
focused question in nextQuestion.`)
	return b.String()
}

func (h *JSONDialogHandler) userText(turn *Turn) string {
	var b strings.Builder
	if len(turn.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range turn.History {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("New user message: " + turn.Input)
	return b.String()
}

var affirmativePhrases = []string{
	"yes", "yep", "yeah", "sure", "ok", "okay",
	"go ahead", "proceed", "sounds good", "do it", "let's do it",
	"let's go", "continue", "that works", "please do",
}

// isAffirmative reports whether the input reads as an explicit go-ahead
func isAffirmative(input string) bool {
	text := strings.ToLower(strings.TrimSpace(input))
	text = strings.Trim(text, ".!,")
	if text == "" {
		return false
	}
	for _, phrase := range affirmativePhrases {
		if text == phrase || strings.HasPrefix(text, phrase+" ") || strings.HasPrefix(text, phrase+",") {
			return true
		}
	}
	return false
}
