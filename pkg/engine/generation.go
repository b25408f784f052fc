package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/models"
	"github.com/pressflow/pressflow/pkg/observability"
)

// assetResponse is the JSON contract for asset generation
type assetResponse struct {
	Asset string `json:"asset"`
}

// AssetCreationHandler generates an asset from the information collected by
// earlier steps. Normally auto-executed; a returned error makes the
// dispatcher fall back to the step's static prompt.
type AssetCreationHandler struct {
	client completion.Client
	logger observability.Logger
	// contextWindow bounds how many recent messages ground the generation
	contextWindow int
}

// NewAssetCreationHandler creates the handler for asset_creation steps
func NewAssetCreationHandler(client completion.Client, logger observability.Logger, contextWindow int) *AssetCreationHandler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if contextWindow <= 0 {
		contextWindow = 10
	}
	return &AssetCreationHandler{
		client:        client,
		logger:        logger.WithPrefix("engine.generation"),
		contextWindow: contextWindow,
	}
}

// ProcessTurn implements StepHandler
func (h *AssetCreationHandler) ProcessTurn(ctx context.Context, turn *Turn) (*StepResult, error) {
	info := gatherCollectedInformation(turn.Steps)
	assetType, template := h.selectTemplate(turn, info)

	raw, err := h.client.Complete(ctx, h.systemInstructions(template), h.userText(turn, info), completion.Options{
		Temperature: 0.7,
	})
	if err != nil {
		return nil, errors.Wrap(err, "asset generation failed")
	}

	asset := parseAsset(raw)

	turn.Step.SetMeta(models.MetaGeneratedAsset, asset)
	turn.Step.SetMeta(models.MetaSelectedAssetType, assetType)
	turn.Step.AIResponse = asset

	h.logger.Info("Asset generated", map[string]interface{}{
		"workflow_id": turn.Workflow.ID,
		"step":        turn.Step.Name,
		"asset_type":  assetType,
	})

	return &StepResult{
		Complete: true,
		Messages: []string{asset},
	}, nil
}

// parseAsset decodes the {"asset": ...} contract, treating the whole raw
// response as the asset when the contract does not parse. Generation never
// hard-fails on a malformed wrapper.
func parseAsset(raw string) string {
	var resp assetResponse
	if err := completion.DecodeObject(raw, &resp); err == nil && strings.TrimSpace(resp.Asset) != "" {
		return resp.Asset
	}
	return strings.TrimSpace(raw)
}

func (h *AssetCreationHandler) selectTemplate(turn *Turn, info models.CollectedInformation) (string, string) {
	templates := turn.Def.Config.ContentTemplates

	assetType := turn.Step.MetaString(models.MetaSelectedAssetType)
	if assetType == "" {
		assetType, _ = info["selectedAssetType"].(string)
	}
	if tmpl, ok := templates[assetType]; ok {
		return assetType, tmpl
	}
	for name, tmpl := range templates {
		return name, tmpl
	}
	return assetType, "Write the requested asset from the provided information."
}

func (h *AssetCreationHandler) systemInstructions(template string) string {
	return template + "\n\nRespond with ONLY a JSON object shaped exactly as {\"asset\": string}, " +
		"where asset holds the complete generated text. No prose outside the object."
}

func (h *AssetCreationHandler) userText(turn *Turn, info models.CollectedInformation) string {
	var b strings.Builder
	snapshot, _ := json.Marshal(info)
	b.WriteString("Collected information: " + string(snapshot) + "\n")

	history := turn.History
	if len(history) > h.contextWindow {
		history = history[len(history)-h.contextWindow:]
	}
	if len(history) > 0 {
		b.WriteString("Recent conversation for grounding:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}
	return b.String()
}

// gatherCollectedInformation merges the collected information of every
// complete step, in step order, so generation sees everything the dialog
// steps gathered.
func gatherCollectedInformation(steps []*models.StepInstance) models.CollectedInformation {
	info := make(models.CollectedInformation)
	for _, step := range steps {
		if step.Status != models.StepStatusComplete {
			continue
		}
		if step.Metadata == nil {
			continue
		}
		if collected, ok := step.Metadata[models.MetaCollectedInformation].(map[string]interface{}); ok {
			info = info.Merge(collected)
		}
	}
	return info
}
