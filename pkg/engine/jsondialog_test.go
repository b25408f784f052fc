package engine

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressflow/pressflow/pkg/models"
)

func dialogTurn(input string, essential ...string) *Turn {
	return &Turn{
		Workflow: &models.Workflow{},
		Step: &models.StepInstance{
			Name:   "Collect Information",
			Type:   models.StepTypeJSONDialog,
			Status: models.StepStatusInProgress,
		},
		Def: &models.StepDefinition{
			Name: "Collect Information",
			Type: models.StepTypeJSONDialog,
			Config: models.StepConfig{
				Goal:            "Gather press release facts.",
				EssentialFields: essential,
			},
		},
		Input: input,
	}
}

func TestJSONDialogIncompleteTurnAsksNextQuestion(t *testing.T) {
	client := &scriptedClient{}
	client.push(`{"isComplete": false, "collectedInformation": {"companyName": "Acme"},
		"missingInformation": ["keyMessage"], "nextQuestion": "What's the news?", "suggestedNextStep": null}`)

	h := NewJSONDialogHandler(client, nil)
	turn := dialogTurn("It's for Acme")

	result, err := h.ProcessTurn(context.Background(), turn)
	require.NoError(t, err)
	assert.False(t, result.Complete)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "What's the news?", result.Messages[0])
	assert.Equal(t, "Acme", turn.Step.CollectedInformation()["companyName"])
}

func TestJSONDialogMergePreservesEarlierFields(t *testing.T) {
	client := &scriptedClient{}
	// The reply omits companyName entirely; the merge must keep it
	client.push(`{"isComplete": false, "collectedInformation": {"keyMessage": "Series B"},
		"missingInformation": [], "nextQuestion": "Anything else?", "suggestedNextStep": null}`)

	h := NewJSONDialogHandler(client, nil)
	turn := dialogTurn("We raised a Series B")
	turn.Step.SetCollectedInformation(models.CollectedInformation{"companyName": "Acme"})

	result, err := h.ProcessTurn(context.Background(), turn)
	require.NoError(t, err)
	assert.False(t, result.Complete)

	info := turn.Step.CollectedInformation()
	assert.Equal(t, "Acme", info["companyName"])
	assert.Equal(t, "Series B", info["keyMessage"])
}

func TestJSONDialogCompleteLiftsSelections(t *testing.T) {
	client := &scriptedClient{}
	client.push(`{"isComplete": true, "collectedInformation": {"selectedWorkflow": "Press Release"},
		"missingInformation": [], "nextQuestion": null, "suggestedNextStep": null}`)

	h := NewJSONDialogHandler(client, nil)
	turn := dialogTurn("a press release")

	result, err := h.ProcessTurn(context.Background(), turn)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, "Press Release", turn.Step.MetaString(models.MetaSelectedWorkflow))
}

func TestJSONDialogDegradesOnMalformedReply(t *testing.T) {
	cases := map[string]func(*scriptedClient){
		"prose reply":     func(c *scriptedClient) { c.push("Sure! What company is this for?") },
		"missing fields":  func(c *scriptedClient) { c.push(`{"nextQuestion": "hm?"}`) },
		"service failure": func(c *scriptedClient) { c.pushErr(errors.New("upstream 503")) },
	}

	for name, arrange := range cases {
		t.Run(name, func(t *testing.T) {
			client := &scriptedClient{}
			arrange(client)

			h := NewJSONDialogHandler(client, nil)
			turn := dialogTurn("hello")
			turn.Step.SetCollectedInformation(models.CollectedInformation{"companyName": "Acme"})

			result, err := h.ProcessTurn(context.Background(), turn)
			require.NoError(t, err, "parse failures must degrade, not surface")
			assert.False(t, result.Complete)
			require.Len(t, result.Messages, 1)
			assert.Equal(t, dialogClarifyQuestion, result.Messages[0])
			// Accumulated state survives the bad turn
			assert.Equal(t, "Acme", turn.Step.CollectedInformation()["companyName"])
		})
	}
}

func TestJSONDialogProceedAnywayTakesTwoTurns(t *testing.T) {
	client := &scriptedClient{}
	client.push(`{"isComplete": false, "collectedInformation": {"companyName": "Acme", "keyMessage": "Series B"},
		"missingInformation": ["quote"], "nextQuestion": "Do you have a quote?", "suggestedNextStep": null}`)

	h := NewJSONDialogHandler(client, nil)
	turn := dialogTurn("Acme raised a Series B", "companyName", "keyMessage")

	// Turn 1: essentials are in, so the handler offers the early exit
	result, err := h.ProcessTurn(context.Background(), turn)
	require.NoError(t, err)
	assert.False(t, result.Complete)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "proceed")
	assert.True(t, turn.Step.MetaBool(models.MetaProceedOffered))

	// Turn 2: an affirmative converts the offer into completion with no
	// completion call.
	turn.Input = "yes, go ahead"
	result, err = h.ProcessTurn(context.Background(), turn)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, 1, client.callCount())
}

func TestJSONDialogOfferIsNotRepeated(t *testing.T) {
	client := &scriptedClient{}
	client.push(`{"isComplete": false, "collectedInformation": {"companyName": "Acme", "keyMessage": "Series B"},
		"missingInformation": ["quote"], "nextQuestion": "Do you have a quote?", "suggestedNextStep": null}`)

	h := NewJSONDialogHandler(client, nil)
	turn := dialogTurn("no quote yet", "companyName", "keyMessage")
	turn.Step.SetCollectedInformation(models.CollectedInformation{"companyName": "Acme", "keyMessage": "Series B"})
	turn.Step.SetMeta(models.MetaProceedOffered, true)

	// A non-affirmative answer after the offer falls back to the normal
	// question path instead of offering again.
	result, err := h.ProcessTurn(context.Background(), turn)
	require.NoError(t, err)
	assert.False(t, result.Complete)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "Do you have a quote?", result.Messages[0])
}

func TestIsAffirmative(t *testing.T) {
	for _, input := range []string{"yes", "Yes!", "go ahead", "sure, proceed", "ok."} {
		assert.True(t, isAffirmative(input), input)
	}
	for _, input := range []string{"", "no", "not yet", "what about the quote?", "yesterday we launched"} {
		assert.False(t, isAffirmative(input), input)
	}
}
