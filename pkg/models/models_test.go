package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"companyName": "Acme", "revisionCount": float64(2)}

	value, err := m.Value()
	require.NoError(t, err)

	var scanned JSONMap
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, m, scanned)
}

func TestJSONMapScanNil(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
}

func TestCollectedInformationMergePreservesExisting(t *testing.T) {
	info := CollectedInformation{
		"companyName":      "Acme Robotics",
		"announcementType": "product_launch",
	}

	merged := info.Merge(map[string]interface{}{
		"productName": "AcmeBot 3000",
		"companyName": "",
	})

	assert.Equal(t, "Acme Robotics", merged["companyName"], "empty update must not drop a collected field")
	assert.Equal(t, "product_launch", merged["announcementType"])
	assert.Equal(t, "AcmeBot 3000", merged["productName"])
}

func TestCollectedInformationMergeNested(t *testing.T) {
	info := CollectedInformation{
		"contacts": map[string]interface{}{"press": "press@acme.test"},
	}

	merged := info.Merge(map[string]interface{}{
		"contacts": map[string]interface{}{"sales": "sales@acme.test"},
	})

	contacts, ok := merged["contacts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "press@acme.test", contacts["press"])
	assert.Equal(t, "sales@acme.test", contacts["sales"])
}

func TestCollectedInformationHasAll(t *testing.T) {
	info := CollectedInformation{
		"companyName": "Acme",
		"headline":    "",
	}

	assert.True(t, info.HasAll([]string{"companyName"}))
	assert.False(t, info.HasAll([]string{"companyName", "headline"}))
	assert.False(t, info.HasAll([]string{"missing"}))
}

func TestTemplateValidate(t *testing.T) {
	tests := []struct {
		name     string
		template WorkflowTemplate
		wantErr  string
	}{
		{
			name: "valid template",
			template: WorkflowTemplate{
				ID:   TemplatePressRelease,
				Name: "Press Release",
				Steps: []StepDefinition{
					{Type: StepTypeJSONDialog, Name: "Collect", Order: 0},
					{Type: StepTypeAssetCreation, Name: "Generate", Order: 1, Dependencies: []string{"Collect"}},
					{Type: StepTypeUserInput, Name: "Review", Order: 2, Dependencies: []string{"Generate"}},
				},
			},
		},
		{
			name: "duplicate step name",
			template: WorkflowTemplate{
				ID:   TemplatePressRelease,
				Name: "Press Release",
				Steps: []StepDefinition{
					{Type: StepTypeJSONDialog, Name: "Collect", Order: 0},
					{Type: StepTypeJSONDialog, Name: "Collect", Order: 1},
				},
			},
			wantErr: "duplicate step name",
		},
		{
			name: "dependency on later step",
			template: WorkflowTemplate{
				ID:   TemplatePressRelease,
				Name: "Press Release",
				Steps: []StepDefinition{
					{Type: StepTypeJSONDialog, Name: "Collect", Order: 0, Dependencies: []string{"Generate"}},
					{Type: StepTypeAssetCreation, Name: "Generate", Order: 1},
				},
			},
			wantErr: "unknown or later step",
		},
		{
			name: "non-increasing order",
			template: WorkflowTemplate{
				ID:   TemplatePressRelease,
				Name: "Press Release",
				Steps: []StepDefinition{
					{Type: StepTypeJSONDialog, Name: "Collect", Order: 1},
					{Type: StepTypeAssetCreation, Name: "Generate", Order: 1},
				},
			},
			wantErr: "not increasing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.template.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStepInstanceMetadataHelpers(t *testing.T) {
	step := &StepInstance{}

	step.SetMeta(MetaRevisionCount, 3)
	assert.Equal(t, 3, step.MetaInt(MetaRevisionCount))

	// Simulate a JSONB round trip where numbers come back as float64
	raw, err := json.Marshal(step.Metadata)
	require.NoError(t, err)
	var restored JSONMap
	require.NoError(t, json.Unmarshal(raw, &restored))
	step.Metadata = restored
	assert.Equal(t, 3, step.MetaInt(MetaRevisionCount))

	step.SetMeta(MetaInitialPromptSent, true)
	assert.True(t, step.MetaBool(MetaInitialPromptSent))
	assert.False(t, step.MetaBool("missing"))

	info := step.CollectedInformation()
	info["companyName"] = "Acme"
	assert.Equal(t, "Acme", step.CollectedInformation()["companyName"])
}

func TestThreadMessageIsBookkeeping(t *testing.T) {
	assert.True(t, (&ThreadMessage{Content: SystemPrefix + " thread renamed"}).IsBookkeeping())
	assert.True(t, (&ThreadMessage{Content: StatusPrefix + " workflow started"}).IsBookkeeping())
	assert.False(t, (&ThreadMessage{Content: "Here is your press release"}).IsBookkeeping())
}

func TestWorkflowIsTerminal(t *testing.T) {
	assert.False(t, (&Workflow{Status: WorkflowStatusActive}).IsTerminal())
	assert.True(t, (&Workflow{Status: WorkflowStatusCompleted}).IsTerminal())
	assert.True(t, (&Workflow{Status: WorkflowStatusFailed}).IsTerminal())
}
