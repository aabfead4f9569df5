// Package openai adapts dispatch requests to the OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/adapters"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

const defaultMaxTokens = 1024

// Config holds OpenAI-specific settings. BaseURL redirects the client to
// compatible gateways.
type Config struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	OrgID       string  `yaml:"org_id"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// Adapter invokes OpenAI chat models.
type Adapter struct {
	client *openai.Client
	config Config
	logger *logrus.Logger
}

// New creates an OpenAI adapter. The model name is required.
func New(config Config, logger *logrus.Logger) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, &types.ConfigurationError{Reason: "openai adapter requires an API key"}
	}
	if config.Model == "" {
		return nil, &types.ConfigurationError{Reason: "openai adapter requires a model name"}
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	return &Adapter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}, nil
}

func (a *Adapter) Name() string {
	return "openai"
}

func (a *Adapter) Invoke(ctx context.Context, backend types.Backend, req types.Request) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.PromptText},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	})
	if err != nil {
		a.logger.WithError(err).WithField("backend", backend.Name).Error("OpenAI API call failed")
		return "", fmt.Errorf("openai api call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	a.logger.WithFields(logrus.Fields{
		"backend":           backend.Name,
		"model":             a.config.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("OpenAI completion finished")

	return resp.Choices[0].Message.Content, nil
}

var _ adapters.Adapter = (*Adapter)(nil)
