package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WorkflowStatus represents the state of a workflow instance
type WorkflowStatus string

const (
	WorkflowStatusActive    WorkflowStatus = "active"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// StepStatus represents the state of a step instance
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusComplete   StepStatus = "complete"
	StepStatusFailed     StepStatus = "failed"
)

// StepType identifies which handler processes a step
type StepType string

const (
	StepTypeJSONDialog    StepType = "json_dialog"
	StepTypeAPICall       StepType = "api_call"
	StepTypeUserInput     StepType = "user_input"
	StepTypeAssetCreation StepType = "asset_creation"
	StepTypeGenerateTitle StepType = "generate_thread_title"
)

// Workflow is one running instance of a template for a conversation thread.
// At most one workflow per thread may be active at a time.
type Workflow struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	ThreadID      uuid.UUID      `json:"thread_id" db:"thread_id"`
	TemplateID    TemplateID     `json:"template_id" db:"template_id"`
	Status        WorkflowStatus `json:"status" db:"status"`
	CurrentStepID *uuid.UUID     `json:"current_step_id,omitempty" db:"current_step_id"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the workflow is in a terminal state
func (w *Workflow) IsTerminal() bool {
	switch w.Status {
	case WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// StepInstance is one unit of work within a workflow. The immutable
// configuration lives on the template's StepDefinition; everything here is
// runtime state and may change on every turn.
type StepInstance struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	WorkflowID   uuid.UUID      `json:"workflow_id" db:"workflow_id"`
	Type         StepType       `json:"type" db:"type"`
	Name         string         `json:"name" db:"name"`
	Status       StepStatus     `json:"status" db:"status"`
	StepOrder    int            `json:"step_order" db:"step_order"`
	Dependencies pq.StringArray `json:"dependencies" db:"dependencies"`
	Prompt       string         `json:"prompt" db:"prompt"`
	Metadata     JSONMap        `json:"metadata" db:"metadata"`
	UserInput    string         `json:"user_input" db:"user_input"`
	AIResponse   string         `json:"ai_response" db:"ai_response"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Runtime metadata keys carried on StepInstance.Metadata.
const (
	MetaCollectedInformation = "collectedInformation"
	MetaInitialPromptSent    = "initialPromptSent"
	MetaGeneratedAsset       = "generatedAsset"
	MetaRevisionCount        = "revisionCount"
	MetaSelectedWorkflow     = "selectedWorkflow"
	MetaSelectedAssetType    = "selectedAssetType"
	MetaProceedOffered       = "proceedOffered"
)

// CollectedInformation returns the step's accumulated information map,
// creating it on first use.
func (s *StepInstance) CollectedInformation() CollectedInformation {
	if s.Metadata == nil {
		s.Metadata = make(JSONMap)
	}
	if existing, ok := s.Metadata[MetaCollectedInformation].(map[string]interface{}); ok {
		return CollectedInformation(existing)
	}
	info := make(map[string]interface{})
	s.Metadata[MetaCollectedInformation] = info
	return CollectedInformation(info)
}

// SetCollectedInformation replaces the step's accumulated information map
func (s *StepInstance) SetCollectedInformation(info CollectedInformation) {
	if s.Metadata == nil {
		s.Metadata = make(JSONMap)
	}
	s.Metadata[MetaCollectedInformation] = map[string]interface{}(info)
}

// MetaBool reads a boolean flag from step metadata
func (s *StepInstance) MetaBool(key string) bool {
	if s.Metadata == nil {
		return false
	}
	v, _ := s.Metadata[key].(bool)
	return v
}

// SetMeta writes a metadata value, allocating the map if needed
func (s *StepInstance) SetMeta(key string, value interface{}) {
	if s.Metadata == nil {
		s.Metadata = make(JSONMap)
	}
	s.Metadata[key] = value
}

// MetaString reads a string value from step metadata
func (s *StepInstance) MetaString(key string) string {
	if s.Metadata == nil {
		return ""
	}
	v, _ := s.Metadata[key].(string)
	return v
}

// MetaInt reads an integer value from step metadata. JSON round-trips store
// numbers as float64, so both representations are accepted.
func (s *StepInstance) MetaInt(key string) int {
	if s.Metadata == nil {
		return 0
	}
	switch v := s.Metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
