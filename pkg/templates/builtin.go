package templates

import "github.com/pressflow/pressflow/pkg/models"

// NewDefaultRegistry registers the built-in workflow templates. The
// selection template is the base workflow every new thread starts on; the
// others are chained from it.
func NewDefaultRegistry() (*Registry, error) {
	return NewRegistry(
		workflowSelection(),
		pressRelease(),
		mediaPitch(),
		quickPressRelease(),
	)
}

func workflowSelection() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:          models.TemplateWorkflowSelection,
		Name:        "Workflow Selection",
		Description: "Names the thread and asks the user which workflow to run next.",
		Steps: []models.StepDefinition{
			{
				Type:   models.StepTypeGenerateTitle,
				Name:   "Generate Thread Title",
				Order:  0,
				Prompt: "Naming this conversation...",
				Config: models.StepConfig{
					Goal:        "Produce a short descriptive title for this conversation thread.",
					AutoExecute: true,
					Silent:      true,
				},
			},
			{
				Type:  models.StepTypeJSONDialog,
				Name:  "Workflow Selection",
				Order: 1,
				Prompt: "What would you like to create today? I can help with a press release, " +
					"a media pitch, or a quick press release if you're short on time.",
				Config: models.StepConfig{
					Goal: "Determine which workflow the user wants to run.",
					ExtractionInstructions: "Extract the user's chosen workflow into the " +
						"selectedWorkflow field. Valid choices: Press Release, Media Pitch, " +
						"Quick Press Release. If the user is undecided, ask a short question " +
						"describing the options.",
					EssentialFields: []string{"selectedWorkflow"},
				},
			},
		},
	}
}

func pressRelease() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:          models.TemplatePressRelease,
		Name:        "Press Release",
		Description: "Collects announcement details and drafts a full press release.",
		Steps: []models.StepDefinition{
			{
				Type:  models.StepTypeJSONDialog,
				Name:  "Collect Information",
				Order: 0,
				Prompt: "Let's put together your press release. Tell me about the announcement: " +
					"what company is it for, and what's the news?",
				Config: models.StepConfig{
					Goal: "Gather the facts needed to write a press release.",
					ExtractionInstructions: "Extract companyName, announcementType (product_launch, " +
						"funding_round, partnership, executive_hire, or other), keyMessage, " +
						"spokespersonName, spokespersonTitle, quote, launchDate, companyBoilerplate, " +
						"and mediaContact. Ask one focused question at a time for missing fields.",
					EssentialFields: []string{"companyName", "announcementType", "keyMessage"},
				},
			},
			{
				Type:         models.StepTypeAssetCreation,
				Name:         "Generate Press Release",
				Order:        1,
				Dependencies: []string{"Collect Information"},
				Prompt:       "Generating your press release...",
				Config: models.StepConfig{
					Goal:        "Draft the press release from the collected information.",
					AutoExecute: true,
					ContentTemplates: map[string]string{
						"press_release": pressReleaseTemplate,
					},
				},
			},
			{
				Type:         models.StepTypeUserInput,
				Name:         "Review Press Release",
				Order:        2,
				Dependencies: []string{"Generate Press Release"},
				Prompt: "Here's your draft. Would you like any changes, or does it look " +
					"ready to go?",
				Config: models.StepConfig{
					Goal:         "Collect approval or revision requests for the draft.",
					Review:       true,
					ReviewTarget: "Generate Press Release",
				},
			},
		},
	}
}

func mediaPitch() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:          models.TemplateMediaPitch,
		Name:        "Media Pitch",
		Description: "Researches angles and drafts a short pitch for journalists.",
		Steps: []models.StepDefinition{
			{
				Type:   models.StepTypeAPICall,
				Name:   "Research Angles",
				Order:  0,
				Prompt: "Looking for newsworthy angles...",
				Config: models.StepConfig{
					Goal: "List three angles that would make this story interesting to a " +
						"journalist covering the company's industry.",
					AutoExecute: true,
				},
			},
			{
				Type:         models.StepTypeJSONDialog,
				Name:         "Collect Pitch Details",
				Order:        1,
				Dependencies: []string{"Research Angles"},
				Prompt: "Let's shape your pitch. Which outlet or journalist are you targeting, " +
					"and what's the story?",
				Config: models.StepConfig{
					Goal: "Gather the facts needed to write a media pitch.",
					ExtractionInstructions: "Extract companyName, storyHook, targetOutlet, " +
						"targetJournalist, timeliness, and supportingData. Ask one focused " +
						"question at a time for missing fields.",
					EssentialFields: []string{"companyName", "storyHook"},
				},
			},
			{
				Type:         models.StepTypeAssetCreation,
				Name:         "Generate Media Pitch",
				Order:        2,
				Dependencies: []string{"Collect Pitch Details"},
				Prompt:       "Drafting your pitch...",
				Config: models.StepConfig{
					Goal:        "Draft the media pitch from the collected information.",
					AutoExecute: true,
					ContentTemplates: map[string]string{
						"media_pitch": mediaPitchTemplate,
					},
				},
			},
			{
				Type:         models.StepTypeUserInput,
				Name:         "Review Media Pitch",
				Order:        3,
				Dependencies: []string{"Generate Media Pitch"},
				Prompt:       "Here's the pitch. Any changes before you send it?",
				Config: models.StepConfig{
					Goal:         "Collect approval or revision requests for the pitch.",
					Review:       true,
					ReviewTarget: "Generate Media Pitch",
				},
			},
		},
	}
}

func quickPressRelease() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:          models.TemplateQuickPressRelease,
		Name:        "Quick Press Release",
		Description: "Minimal-questions variant: three facts in, a draft out.",
		Steps: []models.StepDefinition{
			{
				Type:   models.StepTypeJSONDialog,
				Name:   "Collect Essentials",
				Order:  0,
				Prompt: "Quick version: give me the company, the news, and one quote if you have it.",
				Config: models.StepConfig{
					Goal: "Gather only the essential facts for a short press release.",
					ExtractionInstructions: "Extract companyName, keyMessage, and quote. Do not " +
						"ask about anything else; mark the step complete as soon as companyName " +
						"and keyMessage are present.",
					EssentialFields: []string{"companyName", "keyMessage"},
				},
			},
			{
				Type:         models.StepTypeAssetCreation,
				Name:         "Generate Press Release",
				Order:        1,
				Dependencies: []string{"Collect Essentials"},
				Prompt:       "Generating your press release...",
				Config: models.StepConfig{
					Goal:        "Draft a concise press release from the essentials.",
					AutoExecute: true,
					ContentTemplates: map[string]string{
						"press_release": pressReleaseTemplate,
					},
				},
			},
			{
				Type:         models.StepTypeUserInput,
				Name:         "Review Press Release",
				Order:        2,
				Dependencies: []string{"Generate Press Release"},
				Prompt:       "Here's the draft. Good to go, or should I change anything?",
				Config: models.StepConfig{
					Goal:         "Collect approval or revision requests for the draft.",
					Review:       true,
					ReviewTarget: "Generate Press Release",
				},
			},
		},
	}
}

const pressReleaseTemplate = `Write a complete press release in standard AP style.
Structure: dateline, headline, subheadline, lead paragraph answering who/what/when/where/why,
two body paragraphs expanding the key message, a spokesperson quote, company boilerplate,
and a media contact block. Use only facts from the provided information; never invent
names, numbers, or dates. If a fact is missing, omit the section rather than fabricating it.`

const mediaPitchTemplate = `Write a short email pitch to a journalist (under 200 words).
Structure: a specific subject line, a one-sentence hook tied to the outlet's beat,
two sentences of supporting facts, a clear ask (interview, embargo, or exclusive),
and a one-line signoff. Conversational but professional tone. Use only facts from the
provided information.`
