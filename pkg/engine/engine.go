package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/models"
	"github.com/pressflow/pressflow/pkg/observability"
	"github.com/pressflow/pressflow/pkg/queue"
	threadrepo "github.com/pressflow/pressflow/pkg/repository/thread"
	workflowrepo "github.com/pressflow/pressflow/pkg/repository/workflow"
	"github.com/pressflow/pressflow/pkg/templates"
)

// JobWorkflowEvent is the background job type for workflow event fan-out
const JobWorkflowEvent queue.JobType = "workflow.event"

// WorkflowEvent is the payload enqueued on workflow lifecycle changes
type WorkflowEvent struct {
	Event      string            `json:"event"`
	WorkflowID uuid.UUID         `json:"workflow_id"`
	ThreadID   uuid.UUID         `json:"thread_id"`
	TemplateID models.TemplateID `json:"template_id"`
}

var (
	// ErrNoActiveWorkflow is returned when a thread has no active workflow
	ErrNoActiveWorkflow = errors.New("no active workflow for thread")

	// ErrActiveWorkflowExists is returned when starting a workflow on a
	// thread that already has one active.
	ErrActiveWorkflowExists = errors.New("thread already has an active workflow")

	// ErrUnknownStepType is returned when no handler covers a step type
	ErrUnknownStepType = errors.New("no handler registered for step type")
)

// Config tunes engine behavior
type Config struct {
	// ContextWindow bounds the recent-message history passed to handlers
	ContextWindow int

	// DedupWindow bounds how many recent outbound messages are checked
	// for duplicate suppression.
	DedupWindow int
}

// Engine executes workflows: it routes each inbound user message to the
// current step's handler, advances through auto-executed steps, and chains
// follow-up workflows. Turns on the same thread are serialized; state is
// reloaded from the store at the start of each turn.
type Engine struct {
	registry  *templates.Registry
	workflows workflowrepo.Repository
	threads   threadrepo.Repository
	client    completion.Client
	jobs      *queue.Queue
	logger    observability.Logger
	handlers  map[models.StepType]StepHandler

	locks  sync.Map // thread id -> *sync.Mutex
	recent *lru.Cache[uuid.UUID, []string]

	contextWindow int
	dedupWindow   int
}

// New constructs the engine with its collaborators injected. jobs may be
// nil when no background queue is wanted.
func New(
	registry *templates.Registry,
	workflows workflowrepo.Repository,
	threads threadrepo.Repository,
	client completion.Client,
	jobs *queue.Queue,
	logger observability.Logger,
	cfg Config,
) (*Engine, error) {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 10
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 5
	}

	recent, err := lru.New[uuid.UUID, []string](4096)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dedup cache")
	}

	e := &Engine{
		registry:      registry,
		workflows:     workflows,
		threads:       threads,
		client:        client,
		jobs:          jobs,
		logger:        logger.WithPrefix("engine"),
		recent:        recent,
		contextWindow: cfg.ContextWindow,
		dedupWindow:   cfg.DedupWindow,
	}

	e.handlers = map[models.StepType]StepHandler{
		models.StepTypeJSONDialog:    NewJSONDialogHandler(client, logger),
		models.StepTypeAssetCreation: NewAssetCreationHandler(client, logger, cfg.ContextWindow),
		models.StepTypeUserInput:     NewUserInputHandler(client, logger),
		models.StepTypeAPICall:       NewAPICallHandler(client, logger),
		models.StepTypeGenerateTitle: NewTitleHandler(client, threads, logger),
	}

	if jobs != nil {
		jobs.Register(JobWorkflowEvent, e.handleWorkflowEvent)
	}

	return e, nil
}

// HandleMessage processes one inbound user message for a thread. The full
// turn, including auto-execution chaining and any workflow transition,
// runs inline before this returns, serialized per thread. When the thread
// has no active workflow the base selection workflow is started instead.
func (e *Engine) HandleMessage(ctx context.Context, threadID uuid.UUID, userText string) error {
	unlock := e.lockThread(threadID)
	defer unlock()

	if err := e.threads.AppendMessage(ctx, &models.ThreadMessage{
		ID:       uuid.New(),
		ThreadID: threadID,
		Role:     models.RoleUser,
		Content:  userText,
	}); err != nil {
		return errors.Wrap(err, "failed to record user message")
	}

	wf, err := e.activeWorkflow(ctx, threadID)
	if errors.Is(err, ErrNoActiveWorkflow) {
		_, err = e.startLocked(ctx, threadID, models.TemplateWorkflowSelection)
		return err
	}
	if err != nil {
		return err
	}

	steps, err := e.workflows.GetSteps(ctx, wf.ID)
	if err != nil {
		return errors.Wrap(err, "failed to load steps")
	}

	step := e.currentStep(wf, steps)
	if step == nil {
		// Nothing in progress; let the dispatcher pick up where it left off
		return e.advance(ctx, wf, "")
	}
	if step.Status == models.StepStatusPending {
		step.Status = models.StepStatusInProgress
	}

	def, err := e.definition(wf, step)
	if err != nil {
		return err
	}

	handler, ok := e.handlers[step.Type]
	if !ok {
		return errors.Wrapf(ErrUnknownStepType, "type %q", step.Type)
	}

	turn := &Turn{
		Workflow: wf,
		Step:     step,
		Def:      def,
		Steps:    steps,
		Input:    userText,
		History:  e.history(ctx, threadID),
	}

	result, err := handler.ProcessTurn(ctx, turn)
	if err != nil {
		// Per-turn failures degrade to an in-band response, never an
		// aborted turn.
		e.logger.Error("Step handler failed", map[string]interface{}{
			"workflow_id": wf.ID,
			"step":        step.Name,
			"error":       err.Error(),
		})
		e.emit(ctx, threadID, models.RoleAssistant, "Something went wrong on my end. Let's try that again.")
		return nil
	}

	step.UserInput = userText
	e.persistTurn(ctx, step, result)
	e.emitAll(ctx, threadID, result.Messages)

	if !result.Complete {
		return nil
	}

	e.completeStep(ctx, wf, step)
	return e.advance(ctx, wf, result.SuggestedNextStep)
}

// StartWorkflow instantiates a template for a thread and runs it up to the
// first step that needs user input.
func (e *Engine) StartWorkflow(ctx context.Context, threadID uuid.UUID, templateID models.TemplateID) (*models.Workflow, error) {
	unlock := e.lockThread(threadID)
	defer unlock()
	return e.startLocked(ctx, threadID, templateID)
}

// WorkflowState bundles a workflow with its step set for read access
type WorkflowState struct {
	Workflow *models.Workflow       `json:"workflow"`
	Steps    []*models.StepInstance `json:"steps"`
}

// ThreadWorkflow returns the thread's active workflow and steps
func (e *Engine) ThreadWorkflow(ctx context.Context, threadID uuid.UUID) (*WorkflowState, error) {
	wf, err := e.activeWorkflow(ctx, threadID)
	if err != nil {
		return nil, err
	}
	steps, err := e.workflows.GetSteps(ctx, wf.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load steps")
	}
	return &WorkflowState{Workflow: wf, Steps: steps}, nil
}

// startLocked creates the workflow, seeds its steps (first IN_PROGRESS,
// rest PENDING), and dispatches the first step. Caller holds the thread
// lock.
func (e *Engine) startLocked(ctx context.Context, threadID uuid.UUID, templateID models.TemplateID) (*models.Workflow, error) {
	template, err := e.registry.Get(templateID)
	if err != nil {
		return nil, err
	}

	actives, err := e.workflows.ActiveByThread(ctx, threadID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check active workflows")
	}
	if len(actives) > 0 {
		return nil, errors.Wrapf(ErrActiveWorkflowExists, "thread %s", threadID)
	}

	wf := &models.Workflow{
		ID:         uuid.New(),
		ThreadID:   threadID,
		TemplateID: template.ID,
		Status:     models.WorkflowStatusActive,
	}

	steps := make([]*models.StepInstance, 0, len(template.Steps))
	for i, def := range template.Steps {
		status := models.StepStatusPending
		if i == 0 {
			status = models.StepStatusInProgress
		}
		steps = append(steps, &models.StepInstance{
			ID:           uuid.New(),
			WorkflowID:   wf.ID,
			Type:         def.Type,
			Name:         def.Name,
			Status:       status,
			StepOrder:    def.Order,
			Dependencies: def.Dependencies,
			Prompt:       def.Prompt,
			Metadata:     make(models.JSONMap),
		})
	}
	wf.CurrentStepID = &steps[0].ID

	if err := e.workflows.CreateWorkflow(ctx, wf, steps); err != nil {
		return nil, errors.Wrap(err, "failed to create workflow")
	}

	e.logger.Info("Workflow started", map[string]interface{}{
		"workflow_id": wf.ID,
		"thread_id":   threadID,
		"template":    template.ID,
	})
	e.emit(ctx, threadID, models.RoleSystem, fmt.Sprintf("%s Workflow %q started", models.StatusPrefix, template.Name))
	e.enqueueEvent(ctx, "workflow.started", wf)

	if err := e.advance(ctx, wf, ""); err != nil {
		return nil, err
	}
	return wf, nil
}

// advance is the auto-execution dispatcher: it repeatedly selects the next
// eligible step, runs it immediately when flagged auto-execute, and stops
// at the first step that needs human input or when the workflow completes.
func (e *Engine) advance(ctx context.Context, wf *models.Workflow, suggested string) error {
	for {
		steps, err := e.workflows.GetSteps(ctx, wf.ID)
		if err != nil {
			return errors.Wrap(err, "failed to load steps")
		}

		var next *models.StepInstance
		if suggested != "" {
			if s := StepByName(steps, suggested); s != nil && s.Status == models.StepStatusPending {
				e.logger.Info("Following suggested next step", map[string]interface{}{
					"workflow_id": wf.ID,
					"step":        suggested,
				})
				next = s
			}
			suggested = ""
		}

		if next == nil {
			next, err = NextEligibleStep(steps)
			if err != nil {
				// Template authoring bug; surfaced, not papered over
				e.logger.Error("Workflow has no eligible step but is incomplete", map[string]interface{}{
					"workflow_id": wf.ID,
				})
				return errors.Wrapf(err, "workflow %s", wf.ID)
			}
		}

		if next == nil {
			return e.completeWorkflow(ctx, wf)
		}

		if next.Status == models.StepStatusPending {
			next.Status = models.StepStatusInProgress
		}
		wf.CurrentStepID = &next.ID
		if err := e.workflows.UpdateWorkflow(ctx, wf); err != nil {
			return errors.Wrap(err, "failed to set current step")
		}
		if err := e.workflows.UpdateStep(ctx, next); err != nil {
			return errors.Wrap(err, "failed to start step")
		}

		def, err := e.definition(wf, next)
		if err != nil {
			return err
		}

		if !def.Config.AutoExecute {
			e.emitPrompt(ctx, wf, next, def)
			return nil
		}

		handler, ok := e.handlers[next.Type]
		if !ok {
			return errors.Wrapf(ErrUnknownStepType, "type %q", next.Type)
		}

		turn := &Turn{
			Workflow: wf,
			Step:     next,
			Def:      def,
			Steps:    steps,
			Input:    AutoInput,
			History:  e.history(ctx, wf.ThreadID),
		}

		result, err := handler.ProcessTurn(ctx, turn)
		if err != nil {
			// Auto-execution failure must not stall the workflow: fall
			// back to the interactive path and wait for the user.
			e.logger.Warn("Auto-executed step failed; falling back to interactive prompt", map[string]interface{}{
				"workflow_id": wf.ID,
				"step":        next.Name,
				"error":       err.Error(),
			})
			e.emitPrompt(ctx, wf, next, def)
			return nil
		}

		e.persistTurn(ctx, next, result)
		e.emitAll(ctx, wf.ThreadID, result.Messages)

		if !result.Complete {
			return nil
		}
		e.completeStep(ctx, wf, next)
		suggested = result.SuggestedNextStep
	}
}

// completeWorkflow marks the workflow COMPLETED and hands off to the
// transition manager.
func (e *Engine) completeWorkflow(ctx context.Context, wf *models.Workflow) error {
	wf.Status = models.WorkflowStatusCompleted
	wf.CurrentStepID = nil
	if err := e.workflows.UpdateWorkflow(ctx, wf); err != nil {
		return errors.Wrap(err, "failed to complete workflow")
	}

	templateName := string(wf.TemplateID)
	if template, err := e.registry.Get(wf.TemplateID); err == nil {
		templateName = template.Name
	}

	e.logger.Info("Workflow completed", map[string]interface{}{
		"workflow_id": wf.ID,
		"thread_id":   wf.ThreadID,
	})
	e.emit(ctx, wf.ThreadID, models.RoleSystem, fmt.Sprintf("%s Workflow %q completed", models.StatusPrefix, templateName))
	e.enqueueEvent(ctx, "workflow.completed", wf)

	return e.transition(ctx, wf)
}

// transition chains the next workflow after the selection workflow
// completes. The selected name was recorded by the extraction handler
// during the selection step; resolution failure is surfaced to the user
// rather than silently halting the chain.
func (e *Engine) transition(ctx context.Context, wf *models.Workflow) error {
	if wf.TemplateID != models.TemplateWorkflowSelection {
		return nil
	}

	steps, err := e.workflows.GetSteps(ctx, wf.ID)
	if err != nil {
		return errors.Wrap(err, "failed to load steps")
	}

	selection := ""
	for _, step := range steps {
		if s := step.MetaString(models.MetaSelectedWorkflow); s != "" {
			selection = s
		}
	}
	if selection == "" {
		e.emit(ctx, wf.ThreadID, models.RoleAssistant,
			"I didn't catch which workflow you wanted. Tell me and we'll pick up from there.")
		return nil
	}

	target, err := e.registry.Resolve(selection)
	if err != nil {
		e.logger.Warn("Workflow selection did not resolve", map[string]interface{}{
			"thread_id": wf.ThreadID,
			"selection": selection,
		})
		e.emit(ctx, wf.ThreadID, models.RoleAssistant,
			fmt.Sprintf("I couldn't find a workflow matching %q. Could you pick one of: %v?", selection, e.registry.Names()))
		return nil
	}

	_, err = e.startLocked(ctx, wf.ThreadID, target.ID)
	return err
}

// currentStep finds the step the workflow points at, or nil
func (e *Engine) currentStep(wf *models.Workflow, steps []*models.StepInstance) *models.StepInstance {
	if wf.CurrentStepID != nil {
		for _, step := range steps {
			if step.ID == *wf.CurrentStepID {
				return step
			}
		}
	}
	for _, step := range steps {
		if step.Status == models.StepStatusInProgress {
			return step
		}
	}
	return nil
}

// activeWorkflow loads the thread's active workflow, recovering from the
// multiple-ACTIVE bug surface by picking the newest and logging the
// inconsistency.
func (e *Engine) activeWorkflow(ctx context.Context, threadID uuid.UUID) (*models.Workflow, error) {
	actives, err := e.workflows.ActiveByThread(ctx, threadID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load active workflows")
	}
	switch len(actives) {
	case 0:
		return nil, ErrNoActiveWorkflow
	case 1:
		return actives[0], nil
	default:
		e.logger.Warn("Multiple active workflows on thread; using newest", map[string]interface{}{
			"thread_id": threadID,
			"count":     len(actives),
		})
		return actives[0], nil
	}
}

func (e *Engine) definition(wf *models.Workflow, step *models.StepInstance) (*models.StepDefinition, error) {
	template, err := e.registry.Get(wf.TemplateID)
	if err != nil {
		return nil, err
	}
	for i := range template.Steps {
		if template.Steps[i].Name == step.Name {
			return &template.Steps[i], nil
		}
	}
	return nil, errors.Errorf("step %q not defined in template %q", step.Name, wf.TemplateID)
}

func (e *Engine) completeStep(ctx context.Context, wf *models.Workflow, step *models.StepInstance) {
	step.Status = models.StepStatusComplete
	if err := e.workflows.UpdateStep(ctx, step); err != nil {
		e.logger.Error("Failed to persist step completion", map[string]interface{}{
			"workflow_id": wf.ID,
			"step":        step.Name,
			"error":       err.Error(),
		})
		return
	}
	e.logger.Info("Step complete", map[string]interface{}{
		"workflow_id": wf.ID,
		"step":        step.Name,
	})
}

// persistTurn writes the turn's mutations: the step itself plus any other
// steps the handler touched (e.g. the asset step during a revision).
func (e *Engine) persistTurn(ctx context.Context, step *models.StepInstance, result *StepResult) {
	if len(result.Messages) > 0 {
		step.AIResponse = result.Messages[len(result.Messages)-1]
	}
	touched := append([]*models.StepInstance{step}, result.Touched...)
	for _, s := range touched {
		if err := e.workflows.UpdateStep(ctx, s); err != nil {
			e.logger.Error("Failed to persist step", map[string]interface{}{
				"step":  s.Name,
				"error": err.Error(),
			})
		}
	}
}

// emitPrompt sends a step's static prompt once per step instance
func (e *Engine) emitPrompt(ctx context.Context, wf *models.Workflow, step *models.StepInstance, def *models.StepDefinition) {
	if step.MetaBool(models.MetaInitialPromptSent) {
		return
	}
	prompt := step.Prompt
	if prompt == "" {
		prompt = def.Prompt
	}
	if prompt != "" && !def.Config.Silent {
		e.emit(ctx, wf.ThreadID, models.RoleAssistant, prompt)
	}
	step.SetMeta(models.MetaInitialPromptSent, true)
	if err := e.workflows.UpdateStep(ctx, step); err != nil {
		e.logger.Error("Failed to persist prompt flag", map[string]interface{}{
			"step":  step.Name,
			"error": err.Error(),
		})
	}
}

func (e *Engine) emitAll(ctx context.Context, threadID uuid.UUID, messages []string) {
	for _, msg := range messages {
		e.emit(ctx, threadID, models.RoleAssistant, msg)
	}
}

// emit appends an outbound message to the thread log, dropping exact
// duplicates seen within the recent window. Retried requests otherwise
// double-send prompts and status lines.
func (e *Engine) emit(ctx context.Context, threadID uuid.UUID, role models.MessageRole, content string) {
	if content == "" {
		return
	}

	fingerprint := string(role) + "|" + content

	window, ok := e.recent.Get(threadID)
	if !ok {
		window = e.seedWindow(ctx, threadID)
	}
	for _, prev := range window {
		if prev == fingerprint {
			e.logger.Debug("Suppressed duplicate outbound message", map[string]interface{}{
				"thread_id": threadID,
			})
			return
		}
	}

	if err := e.threads.AppendMessage(ctx, &models.ThreadMessage{
		ID:       uuid.New(),
		ThreadID: threadID,
		Role:     role,
		Content:  content,
	}); err != nil {
		e.logger.Error("Failed to append thread message", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return
	}

	window = append([]string{fingerprint}, window...)
	if len(window) > e.dedupWindow {
		window = window[:e.dedupWindow]
	}
	e.recent.Add(threadID, window)
}

// seedWindow rebuilds the dedup window from the store after a cache miss
// (fresh process or LRU eviction).
func (e *Engine) seedWindow(ctx context.Context, threadID uuid.UUID) []string {
	messages, err := e.threads.RecentMessages(ctx, threadID, e.dedupWindow)
	if err != nil {
		return nil
	}
	window := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == models.RoleUser {
			continue
		}
		window = append(window, string(msg.Role)+"|"+msg.Content)
	}
	return window
}

// history returns the thread's recent messages, oldest first
func (e *Engine) history(ctx context.Context, threadID uuid.UUID) []*models.ThreadMessage {
	messages, err := e.threads.RecentMessages(ctx, threadID, e.contextWindow)
	if err != nil {
		e.logger.Warn("Failed to load thread history", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return nil
	}
	// newest first from the store; handlers want chronological order
	out := make([]*models.ThreadMessage, len(messages))
	for i, msg := range messages {
		out[len(messages)-1-i] = msg
	}
	return out
}

func (e *Engine) lockThread(threadID uuid.UUID) func() {
	v, _ := e.locks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) enqueueEvent(ctx context.Context, event string, wf *models.Workflow) {
	if e.jobs == nil {
		return
	}
	payload, err := json.Marshal(WorkflowEvent{
		Event:      event,
		WorkflowID: wf.ID,
		ThreadID:   wf.ThreadID,
		TemplateID: wf.TemplateID,
	})
	if err != nil {
		return
	}
	if err := e.jobs.Enqueue(ctx, JobWorkflowEvent, payload, queue.DefaultRetryPolicy()); err != nil {
		e.logger.Warn("Failed to enqueue workflow event", map[string]interface{}{
			"event": event,
			"error": err.Error(),
		})
	}
}

func (e *Engine) handleWorkflowEvent(ctx context.Context, payload json.RawMessage) error {
	var event WorkflowEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return errors.Wrap(err, "malformed workflow event")
	}
	e.logger.Info("Workflow event", map[string]interface{}{
		"event":       event.Event,
		"workflow_id": event.WorkflowID,
		"thread_id":   event.ThreadID,
		"template":    event.TemplateID,
	})
	return nil
}
