package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/adapters"
	"github.com/tributary-ai/llm-dispatch/internal/adapters/anthropic"
	"github.com/tributary-ai/llm-dispatch/internal/adapters/gemini"
	"github.com/tributary-ai/llm-dispatch/internal/adapters/ollama"
	"github.com/tributary-ai/llm-dispatch/internal/adapters/openai"
	"github.com/tributary-ai/llm-dispatch/internal/config"
	"github.com/tributary-ai/llm-dispatch/internal/middleware"
	"github.com/tributary-ai/llm-dispatch/internal/orchestrator"
	"github.com/tributary-ai/llm-dispatch/internal/server"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

const version = "1.0.0"

// Application ties the configuration, the orchestrator, and the HTTP gateway
// together.
type Application struct {
	config *config.Config
	orch   *orchestrator.Orchestrator
	server *server.Server
	logger *logrus.Logger
}

// NewApplication loads configuration and assembles the dispatch stack.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	orch, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}

	srv, err := server.New(orch, buildServerConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		orch:   orch,
		server: srv,
		logger: logger,
	}, nil
}

// Run starts the gateway and blocks until a shutdown signal arrives.
func (app *Application) Run() error {
	mode := "policy"
	if app.orch.UseFDE() {
		mode = "fde"
	}
	app.logger.WithFields(logrus.Fields{
		"version":  version,
		"mode":     mode,
		"backends": len(app.orch.Backends()),
	}).Info("Starting llm-dispatch")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	app.logger.Info("Starting graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

// setupLogger configures the logger from the logging section.
func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// buildOrchestrator registers every configured backend, policy, mapping, and
// the optional fallback pair.
func buildOrchestrator(cfg *config.Config, logger *logrus.Logger) (*orchestrator.Orchestrator, error) {
	weights := cfg.Engine.Weights.ToWeights()

	orch, err := orchestrator.New(orchestrator.Options{
		UseFDE:           cfg.UseFDE(),
		Weights:          &weights,
		PrivacyPreferred: cfg.Engine.PrivacyPreferred,
		AdapterTimeout:   cfg.Engine.AdapterTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	for _, bc := range cfg.Backends {
		adapter, err := buildAdapter(bc.Adapter, logger)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", bc.Name, err)
		}
		if err := orch.AddProvider(bc.ToBackend(), adapter); err != nil {
			return nil, fmt.Errorf("backend %s: %w", bc.Name, err)
		}
		logger.WithFields(logrus.Fields{
			"backend":  bc.Name,
			"locality": bc.Locality,
			"adapter":  bc.Adapter.Type,
		}).Info("Backend registered")
	}

	for i, pc := range cfg.Policies {
		rule, err := pc.ToRule()
		if err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		if err := orch.AddPolicy(rule, types.Enforcement(pc.Enforcement)); err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
	}

	for classification, backend := range cfg.Mappings {
		if err := orch.SetClassificationMapping(types.Classification(classification), backend); err != nil {
			return nil, err
		}
	}

	if fb := cfg.Engine.Fallback; fb != nil {
		if err := orch.SetFallback(fb.Primary, fb.Target); err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"primary": fb.Primary,
			"target":  fb.Target,
		}).Info("Fallback pair configured")
	}

	return orch, nil
}

// buildAdapter constructs the runtime behind one backend.
func buildAdapter(cfg config.AdapterConfig, logger *logrus.Logger) (adapters.Adapter, error) {
	switch cfg.Type {
	case "mock", "":
		return adapters.NewMock(), nil
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, logger)
	case "openai":
		return openai.New(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
		}, logger)
	case "gemini":
		return gemini.New(context.Background(), gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
		}, logger)
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", cfg.Type)
	}
}

// buildServerConfig maps the loaded configuration onto the gateway's wiring.
func buildServerConfig(cfg *config.Config) *server.Config {
	return &server.Config{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		RateLimit: middleware.RateLimitConfig{
			Enabled:           cfg.Gateway.RateLimit.Enabled,
			RequestsPerMinute: cfg.Gateway.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.Gateway.RateLimit.BurstSize,
			WindowDuration:    cfg.Gateway.RateLimit.WindowDuration,
			CleanupInterval:   cfg.Gateway.RateLimit.CleanupInterval,
		},
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.Gateway.CORS.AllowedOrigins,
			AllowedMethods: cfg.Gateway.CORS.AllowedMethods,
			AllowedHeaders: cfg.Gateway.CORS.AllowedHeaders,
		},
		Validation: middleware.ValidationConfig{
			Enabled:        cfg.Gateway.Validation.Enabled,
			SpecPath:       cfg.Gateway.Validation.OpenAPISpec,
			MaxRequestSize: cfg.Gateway.Validation.MaxRequestSize,
		},
	}
}

// printUsage prints application usage information.
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY         Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY            OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY            Gemini API key\n")
	fmt.Fprintf(os.Stderr, "  LLM_DISPATCH_PORT         Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  LLM_DISPATCH_MODE         Routing mode: policy or fde\n")
	fmt.Fprintf(os.Stderr, "  LLM_DISPATCH_LOG_LEVEL    Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  LLM_DISPATCH_LOG_FORMAT   Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s                         # mock backends, no credentials needed\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *showVer {
		fmt.Printf("llm-dispatch v%s\n", version)
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
