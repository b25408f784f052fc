package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/models"
	"github.com/pressflow/pressflow/pkg/observability"
)

// Review decision outcomes
const (
	decisionApproved = "approved"
	decisionRevision = "revision_requested"
	decisionUnclear  = "unclear"
)

const reviewClarifyQuestion = "Should I make changes, or is it good as it stands? " +
	"Tell me what to adjust, or say it's approved."

// reviewResponse is the JSON contract for review-decision classification
type reviewResponse struct {
	IsComplete           bool `json:"isComplete"`
	CollectedInformation struct {
		ReviewDecision   string   `json:"reviewDecision"`
		RequestedChanges []string `json:"requestedChanges"`
		UserFeedback     string   `json:"userFeedback"`
	} `json:"collectedInformation"`
	NextQuestion *string `json:"nextQuestion"`
}

// UserInputHandler processes user_input steps. Plain steps record the
// input and complete; review-flagged steps run the approve/revise/unclear
// loop over the asset generated by their target step.
type UserInputHandler struct {
	client completion.Client
	logger observability.Logger
}

// NewUserInputHandler creates the handler for user_input steps
func NewUserInputHandler(client completion.Client, logger observability.Logger) *UserInputHandler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &UserInputHandler{client: client, logger: logger.WithPrefix("engine.review")}
}

// ProcessTurn implements StepHandler
func (h *UserInputHandler) ProcessTurn(ctx context.Context, turn *Turn) (*StepResult, error) {
	if !turn.Def.Config.Review {
		turn.Step.UserInput = turn.Input
		return &StepResult{Complete: true}, nil
	}
	return h.processReview(ctx, turn)
}

func (h *UserInputHandler) processReview(ctx context.Context, turn *Turn) (*StepResult, error) {
	target := StepByName(turn.Steps, turn.Def.Config.ReviewTarget)
	if target == nil {
		// Review step without its asset step is a template bug; treat the
		// input as a plain approval so the workflow is not stuck.
		h.logger.Error("Review step has no target asset step", map[string]interface{}{
			"step":   turn.Step.Name,
			"target": turn.Def.Config.ReviewTarget,
		})
		return &StepResult{Complete: true}, nil
	}

	decision, changes := h.classify(ctx, turn)

	switch decision {
	case decisionApproved:
		h.logger.Info("Asset approved", map[string]interface{}{
			"workflow_id": turn.Workflow.ID,
			"revisions":   target.MetaInt(models.MetaRevisionCount),
		})
		return &StepResult{
			Complete: true,
			Messages: []string{"Glad it works for you. Consider it final."},
		}, nil

	case decisionRevision:
		return h.revise(ctx, turn, target, changes)

	default:
		return &StepResult{Messages: []string{reviewClarifyQuestion}}, nil
	}
}

// classify interprets free-text feedback as approved, revision_requested,
// or unclear. An affirmative closing phrase short-circuits; anything else
// goes through the JSON-constrained completion call. Service failure or a
// malformed response degrades to unclear.
func (h *UserInputHandler) classify(ctx context.Context, turn *Turn) (string, []string) {
	if isApproval(turn.Input) {
		return decisionApproved, nil
	}

	raw, err := h.client.Complete(ctx, reviewSystemInstructions, "User feedback: "+turn.Input, completion.Options{
		Temperature: 0,
	})
	if err != nil {
		h.logger.Warn("Review classification call failed; treating as unclear", map[string]interface{}{
			"error": err.Error(),
		})
		return decisionUnclear, nil
	}

	var resp reviewResponse
	if err := completion.DecodeObject(raw, &resp); err != nil {
		return decisionUnclear, nil
	}

	switch resp.CollectedInformation.ReviewDecision {
	case decisionApproved:
		return decisionApproved, nil
	case decisionRevision:
		changes := resp.CollectedInformation.RequestedChanges
		if len(changes) == 0 {
			changes = []string{turn.Input}
		}
		return decisionRevision, changes
	default:
		return decisionUnclear, nil
	}
}

// revise regenerates the asset with the itemized changes applied and loops
// the review step back to itself.
func (h *UserInputHandler) revise(ctx context.Context, turn *Turn, target *models.StepInstance, changes []string) (*StepResult, error) {
	original := target.MetaString(models.MetaGeneratedAsset)

	changesJSON, _ := json.Marshal(changes)
	var b strings.Builder
	b.WriteString("Original asset:\n" + original + "\n\n")
	b.WriteString("Requested changes: " + string(changesJSON) + "\n")
	b.WriteString("Raw user feedback: " + turn.Input + "\n")

	raw, err := h.client.Complete(ctx, reviseSystemInstructions, b.String(), completion.Options{
		Temperature: 0.5,
	})
	if err != nil {
		h.logger.Warn("Revision call failed; asking user to retry", map[string]interface{}{
			"error": err.Error(),
		})
		return &StepResult{
			Messages: []string{"I hit a snag applying those changes. Could you try once more?"},
		}, nil
	}

	revised := parseAsset(raw)
	target.SetMeta(models.MetaGeneratedAsset, revised)
	revisions := target.MetaInt(models.MetaRevisionCount) + 1
	target.SetMeta(models.MetaRevisionCount, revisions)

	h.logger.Info("Asset revised", map[string]interface{}{
		"workflow_id": turn.Workflow.ID,
		"revision":    revisions,
		"changes":     len(changes),
	})

	return &StepResult{
		Messages: []string{revised, "How does this version look?"},
		Touched:  []*models.StepInstance{target},
	}, nil
}

const reviewSystemInstructions = `You classify review feedback on a generated document.
Respond with ONLY a JSON object shaped exactly as:
{"isComplete": boolean, "collectedInformation": {"reviewDecision": "approved"|"revision_requested"|"unclear", "requestedChanges": [string...], "userFeedback": string}, "nextQuestion": string|null}
Rules: reviewDecision is "approved" only for clear acceptance; "revision_requested" when the
feedback asks for any change, with each discrete change as one entry in requestedChanges;
"unclear" when there is no actionable signal. Copy the feedback verbatim into userFeedback.`

const reviseSystemInstructions = `You revise a document according to requested changes.
Apply every requested change while keeping everything else intact.
Respond with ONLY a JSON object shaped exactly as {"asset": string} holding the full revised text.`

var approvalPhrases = []string{
	"looks good", "looks great", "approved", "approve", "perfect",
	"ship it", "send it", "love it", "no changes", "good to go",
	"that's great", "works for me", "all good",
}

// changeSignals are words that mean the feedback also asks for an edit.
// Their presence disqualifies the approval short-circuit so mixed messages
// like "looks good, but shorten the headline" reach the classifier.
var changeSignals = []string{
	" but ", " however ", " though ", " except ", " instead ",
	" change ", " revise ", " rewrite ", " reword ", " fix ", " tweak ",
	" adjust ", " shorten ", " lengthen ", " add ", " remove ", " drop ",
	" can you ", " could you ", " please ",
}

// isApproval reports whether the feedback reads as a clear acceptance with
// no change request attached
func isApproval(input string) bool {
	text := " " + strings.ToLower(strings.TrimSpace(input)) + " "

	approves := false
	for _, phrase := range approvalPhrases {
		if strings.Contains(text, phrase) {
			approves = true
			break
		}
	}
	if !approves {
		return false
	}

	for _, signal := range changeSignals {
		if strings.Contains(text, signal) {
			return false
		}
	}
	return true
}
