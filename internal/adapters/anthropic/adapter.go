// Package anthropic adapts dispatch requests to the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/adapters"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

const defaultMaxTokens = 1024

// Config holds Anthropic-specific settings.
type Config struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Adapter invokes Claude models through the official SDK.
type Adapter struct {
	client *anthropic.Client
	config Config
	logger *logrus.Logger
}

// New creates an Anthropic adapter. The model name is required; max tokens
// defaults to 1024 because the Messages API insists on a value.
func New(config Config, logger *logrus.Logger) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, &types.ConfigurationError{Reason: "anthropic adapter requires an API key"}
	}
	if config.Model == "" {
		return nil, &types.ConfigurationError{Reason: "anthropic adapter requires a model name"}
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &Adapter{
		client: &client,
		config: config,
		logger: logger,
	}, nil
}

func (a *Adapter) Name() string {
	return "anthropic"
}

func (a *Adapter) Invoke(ctx context.Context, backend types.Backend, req types.Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.PromptText)),
		},
	}
	if a.config.Temperature > 0 {
		params.Temperature = anthropic.Float(a.config.Temperature)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		a.logger.WithError(err).WithField("backend", backend.Name).Error("Anthropic API call failed")
		return "", fmt.Errorf("anthropic api call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}

	a.logger.WithFields(logrus.Fields{
		"backend":       backend.Name,
		"model":         a.config.Model,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}).Debug("Anthropic completion finished")

	return text.String(), nil
}

var _ adapters.Adapter = (*Adapter)(nil)
