package completion

import (
	"context"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Config holds configuration for the OpenAI client
type Config struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	DefaultModel   string        `mapstructure:"default_model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OpenAIClient implements Client using the OpenAI chat completions API
type OpenAIClient struct {
	client         *openai.Client
	defaultModel   string
	requestTimeout time.Duration
}

// NewOpenAIClient creates a new OpenAI-backed completion client
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientCfg),
		defaultModel:   cfg.DefaultModel,
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

// Complete implements Client
func (c *OpenAIClient) Complete(ctx context.Context, systemInstructions, userText string, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.requestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstructions},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "completion request failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion service returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
