package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pressflow/pressflow/pkg/engine"
	"github.com/pressflow/pressflow/pkg/models"
	"github.com/pressflow/pressflow/pkg/observability"
	threadrepo "github.com/pressflow/pressflow/pkg/repository/thread"
	"github.com/pressflow/pressflow/pkg/templates"
)

// ThreadAPI handles thread and workflow endpoints
type ThreadAPI struct {
	engine   *engine.Engine
	threads  threadrepo.Repository
	registry *templates.Registry
	logger   observability.Logger
}

// NewThreadAPI creates the thread endpoint group
func NewThreadAPI(eng *engine.Engine, threads threadrepo.Repository, registry *templates.Registry, logger observability.Logger) *ThreadAPI {
	return &ThreadAPI{engine: eng, threads: threads, registry: registry, logger: logger}
}

// RegisterRoutes registers thread endpoints under the given group
func (a *ThreadAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/templates", a.listTemplates)

	threads := router.Group("/threads")
	threads.POST("", a.createThread)
	threads.GET("/:id", a.getThread)
	threads.GET("/:id/messages", a.listMessages)
	threads.POST("/:id/messages", a.postMessage)
	threads.GET("/:id/workflow", a.getWorkflow)
	threads.POST("/:id/workflows", a.startWorkflow)
}

type createThreadRequest struct {
	Title string `json:"title"`
}

func (a *ThreadAPI) createThread(c *gin.Context) {
	var req createThreadRequest
	// Body is optional; an empty thread gets titled by the engine later
	_ = c.ShouldBindJSON(&req)

	thread := &models.Thread{ID: uuid.New(), Title: req.Title}
	if thread.Title == "" {
		thread.Title = "New conversation"
	}
	if err := a.threads.CreateThread(c.Request.Context(), thread); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, thread)
}

func (a *ThreadAPI) getThread(c *gin.Context) {
	id, ok := a.threadID(c)
	if !ok {
		return
	}
	thread, err := a.threads.GetThread(c.Request.Context(), id)
	if errors.Is(err, threadrepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (a *ThreadAPI) listMessages(c *gin.Context) {
	id, ok := a.threadID(c)
	if !ok {
		return
	}
	limit := 50
	messages, err := a.threads.RecentMessages(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type postMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// postMessage runs one full engine turn and returns the messages the turn
// produced, newest first.
func (a *ThreadAPI) postMessage(c *gin.Context) {
	id, ok := a.threadID(c)
	if !ok {
		return
	}
	if _, err := a.threads.GetThread(c.Request.Context(), id); errors.Is(err, threadrepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.engine.HandleMessage(c.Request.Context(), id, req.Content); err != nil {
		a.logger.Error("Turn failed", map[string]interface{}{
			"thread_id": id,
			"error":     err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	messages, err := a.threads.RecentMessages(c.Request.Context(), id, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (a *ThreadAPI) getWorkflow(c *gin.Context) {
	id, ok := a.threadID(c)
	if !ok {
		return
	}
	state, err := a.engine.ThreadWorkflow(c.Request.Context(), id)
	if errors.Is(err, engine.ErrNoActiveWorkflow) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active workflow"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

type startWorkflowRequest struct {
	TemplateID models.TemplateID `json:"template_id" binding:"required"`
}

func (a *ThreadAPI) startWorkflow(c *gin.Context) {
	id, ok := a.threadID(c)
	if !ok {
		return
	}
	var req startWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, err := a.engine.StartWorkflow(c.Request.Context(), id, req.TemplateID)
	switch {
	case errors.Is(err, engine.ErrActiveWorkflowExists):
		c.JSON(http.StatusConflict, gin.H{"error": "thread already has an active workflow"})
		return
	case errors.Is(err, templates.ErrTemplateNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown template"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, wf)
}

func (a *ThreadAPI) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": a.registry.List()})
}

func (a *ThreadAPI) threadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return uuid.Nil, false
	}
	return id, true
}
