// Package gemini adapts dispatch requests to the Google Gemini API.
package gemini

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/tributary-ai/llm-dispatch/internal/adapters"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

const defaultMaxTokens = 1024

// Config holds Gemini-specific settings.
type Config struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// Adapter invokes Gemini models through the google.golang.org/genai client.
type Adapter struct {
	client *genai.Client
	config Config
	logger *logrus.Logger
}

// New creates a Gemini adapter. The model name is required.
func New(ctx context.Context, config Config, logger *logrus.Logger) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, &types.ConfigurationError{Reason: "gemini adapter requires an API key"}
	}
	if config.Model == "" {
		return nil, &types.ConfigurationError{Reason: "gemini adapter requires a model name"}
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Adapter{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

func (a *Adapter) Name() string {
	return "gemini"
}

func (a *Adapter) Invoke(ctx context.Context, backend types.Backend, req types.Request) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(req.PromptText, genai.RoleUser),
	}
	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(a.config.MaxTokens),
	}
	if a.config.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(a.config.Temperature)
	}

	result, err := a.client.Models.GenerateContent(ctx, a.config.Model, contents, genConfig)
	if err != nil {
		a.logger.WithError(err).WithField("backend", backend.Name).Error("Gemini API call failed")
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text content")
	}

	a.logger.WithFields(logrus.Fields{
		"backend": backend.Name,
		"model":   a.config.Model,
	}).Debug("Gemini completion finished")

	return text, nil
}

var _ adapters.Adapter = (*Adapter)(nil)
