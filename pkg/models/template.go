package models

import "fmt"

// TemplateID is the stable identifier of a workflow template
type TemplateID string

const (
	TemplateWorkflowSelection TemplateID = "workflow_selection"
	TemplatePressRelease      TemplateID = "press_release"
	TemplateMediaPitch        TemplateID = "media_pitch"
	TemplateQuickPressRelease TemplateID = "quick_press_release"
)

// WorkflowTemplate is the immutable ordered blueprint a workflow is
// instantiated from. Registered in code at process start, never mutated.
type WorkflowTemplate struct {
	ID          TemplateID
	Name        string
	Description string
	Steps       []StepDefinition
}

// StepDefinition is the immutable configuration of one step in a template.
// Runtime state lives on StepInstance, not here.
type StepDefinition struct {
	Type         StepType
	Name         string
	Description  string
	Prompt       string
	Order        int
	Dependencies []string
	Config       StepConfig
}

// StepConfig is the read-only metadata bag of a step definition
type StepConfig struct {
	// Goal describes what the step is trying to achieve; included in the
	// system instructions sent to the completion service.
	Goal string

	// ExtractionInstructions tell a json_dialog step which fields to pull
	// out of the conversation.
	ExtractionInstructions string

	// EssentialFields are the collected-information keys that must be
	// present before a json_dialog step can offer to proceed early.
	EssentialFields []string

	// ContentTemplates maps asset type to the opaque generation template
	// used by asset_creation steps.
	ContentTemplates map[string]string

	// AutoExecute marks the step to run without waiting for user input
	AutoExecute bool

	// Silent suppresses the step's output message to the thread
	Silent bool

	// Review marks a user_input step as the review half of a
	// generate/review pair. ReviewTarget names the step holding the asset.
	Review       bool
	ReviewTarget string
}

// Validate ensures the template's step set is well formed: unique names,
// strictly increasing order, and dependencies that reference earlier steps.
func (t *WorkflowTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template %s has no name", t.ID)
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("template %s has no steps", t.ID)
	}

	seen := make(map[string]bool)
	lastOrder := -1
	for i, step := range t.Steps {
		if step.Name == "" {
			return fmt.Errorf("template %s: step at index %d has no name", t.ID, i)
		}
		if seen[step.Name] {
			return fmt.Errorf("template %s: duplicate step name %q", t.ID, step.Name)
		}
		if step.Type == "" {
			return fmt.Errorf("template %s: step %q has no type", t.ID, step.Name)
		}
		if step.Order <= lastOrder {
			return fmt.Errorf("template %s: step %q order %d is not increasing", t.ID, step.Name, step.Order)
		}
		lastOrder = step.Order

		for _, dep := range step.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("template %s: step %q depends on unknown or later step %q", t.ID, step.Name, dep)
			}
		}
		seen[step.Name] = true
	}

	return nil
}
