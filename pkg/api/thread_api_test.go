package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/config"
	"github.com/pressflow/pressflow/pkg/engine"
	"github.com/pressflow/pressflow/pkg/models"
	threadrepo "github.com/pressflow/pressflow/pkg/repository/thread"
	workflowrepo "github.com/pressflow/pressflow/pkg/repository/workflow"
	"github.com/pressflow/pressflow/pkg/templates"
)

// stubClient replays canned completion replies in order
type stubClient struct {
	mu      sync.Mutex
	replies []string
}

func (c *stubClient) push(out string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, out)
}

func (c *stubClient) Complete(ctx context.Context, systemInstructions, userText string, opts completion.Options) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return "", fmt.Errorf("stub client: no reply queued")
	}
	out := c.replies[0]
	c.replies = c.replies[1:]
	return out, nil
}

type apiFixture struct {
	server  *Server
	client  *stubClient
	threads *threadrepo.MemoryRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := templates.NewDefaultRegistry()
	require.NoError(t, err)

	client := &stubClient{}
	threads := threadrepo.NewMemoryRepository()
	workflows := workflowrepo.NewMemoryRepository()

	eng, err := engine.New(registry, workflows, threads, client, nil, nil, engine.Config{})
	require.NoError(t, err)

	server := NewServer(eng, threads, registry, config.APIConfig{ListenAddress: ":0"}, nil)
	return &apiFixture{server: server, client: client, threads: threads}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func (f *apiFixture) createThread(t *testing.T) uuid.UUID {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/threads", map[string]string{"title": "Test thread"})
	require.Equal(t, http.StatusCreated, w.Code)

	var thread models.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	return thread.ID
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndGetThread(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createThread(t)

	w := f.do(t, http.MethodGet, "/api/v1/threads/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var thread models.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	assert.Equal(t, "Test thread", thread.Title)
}

func TestGetThreadNotFound(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/threads/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidThreadIDRejected(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/threads/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageRunsTurn(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createThread(t)

	// First message starts the selection workflow: title step then the
	// selection prompt.
	f.client.push(`{"title": "Press release planning"}`)

	w := f.do(t, http.MethodPost, "/api/v1/threads/"+id.String()+"/messages",
		map[string]string{"content": "I need a press release"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []*models.ThreadMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Messages)

	found := false
	for _, msg := range resp.Messages {
		if msg.Role == models.RoleAssistant && msg.Content != "" {
			found = true
		}
	}
	assert.True(t, found, "the turn must produce at least one assistant message")

	// The selection workflow is now visible on the thread
	w = f.do(t, http.MethodGet, "/api/v1/threads/"+id.String()+"/workflow", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state engine.WorkflowState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, models.TemplateWorkflowSelection, state.Workflow.TemplateID)
}

func TestPostMessageValidation(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createThread(t)

	w := f.do(t, http.MethodPost, "/api/v1/threads/"+id.String()+"/messages", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/threads/"+uuid.NewString()+"/messages",
		map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartWorkflowEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createThread(t)

	w := f.do(t, http.MethodPost, "/api/v1/threads/"+id.String()+"/workflows",
		map[string]string{"template_id": "press_release"})
	require.Equal(t, http.StatusCreated, w.Code)

	// A second active workflow on the same thread is rejected
	w = f.do(t, http.MethodPost, "/api/v1/threads/"+id.String()+"/workflows",
		map[string]string{"template_id": "media_pitch"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartWorkflowUnknownTemplate(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createThread(t)

	w := f.do(t, http.MethodPost, "/api/v1/threads/"+id.String()+"/workflows",
		map[string]string{"template_id": "newsletter"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowNotFoundWhenNoneActive(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createThread(t)

	w := f.do(t, http.MethodGet, "/api/v1/threads/"+id.String()+"/workflow", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTemplates(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Templates []*models.WorkflowTemplate `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Templates, 4)
}
