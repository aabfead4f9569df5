package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tributary-ai/llm-dispatch/internal/decision"
	"github.com/tributary-ai/llm-dispatch/internal/policy"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Engine   EngineConfig      `yaml:"engine"`
	Backends []BackendConfig   `yaml:"backends"`
	Policies []PolicyConfig    `yaml:"policies"`
	Mappings map[string]string `yaml:"mappings"`
	Logging  LoggingConfig     `yaml:"logging"`
	Gateway  GatewayConfig     `yaml:"gateway"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// EngineConfig holds decision engine configuration
type EngineConfig struct {
	// Mode selects the routing path: "policy" or "fde".
	Mode             string          `yaml:"mode"`
	Weights          WeightsConfig   `yaml:"weights"`
	PrivacyPreferred []string        `yaml:"privacy_preferred"`
	AdapterTimeout   time.Duration   `yaml:"adapter_timeout"`
	Fallback         *FallbackConfig `yaml:"fallback"`
}

// WeightsConfig holds the four FDE factor weights
type WeightsConfig struct {
	Privacy    float64 `yaml:"privacy"`
	Cost       float64 `yaml:"cost"`
	Capability float64 `yaml:"capability"`
	Latency    float64 `yaml:"latency"`
}

// FallbackConfig names an explicit failover pair
type FallbackConfig struct {
	Primary string `yaml:"primary"`
	Target  string `yaml:"target"`
}

// BackendConfig describes one execution backend and the adapter serving it
type BackendConfig struct {
	Name              string        `yaml:"name"`
	Locality          string        `yaml:"locality"`
	CostPerInputUnit  float64       `yaml:"cost_per_input_unit"`
	CostPerOutputUnit float64       `yaml:"cost_per_output_unit"`
	Capability        *float64      `yaml:"capability"`
	LatencyEstimate   time.Duration `yaml:"latency_estimate"`
	Adapter           AdapterConfig `yaml:"adapter"`
}

// AdapterConfig selects and configures the runtime behind a backend
type AdapterConfig struct {
	// Type is one of: mock, anthropic, openai, gemini, ollama.
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// PolicyConfig describes one built-in routing policy
type PolicyConfig struct {
	// Type is one of: privacy, keyword, metadata, fallback.
	Type           string   `yaml:"type"`
	Enforcement    string   `yaml:"enforcement"`
	Classification string   `yaml:"classification"`
	Keywords       []string `yaml:"keywords"`
	MetadataKey    string   `yaml:"metadata_key"`
	MetadataValue  string   `yaml:"metadata_value"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// GatewayConfig holds HTTP gateway middleware configuration
type GatewayConfig struct {
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	CORS       CORSConfig       `yaml:"cors"`
	Validation ValidationConfig `yaml:"validation"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	WindowDuration    time.Duration `yaml:"window_duration"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ValidationConfig holds OpenAPI request validation configuration
type ValidationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OpenAPISpec    string `yaml:"openapi_spec"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	// Set defaults
	config.setDefaults()

	// Load from file if provided
	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values. The default backend pair is
// mock-served so the system runs without any external credentials.
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	c.Engine = EngineConfig{
		Mode: "policy",
		Weights: WeightsConfig{
			Privacy:    0.40,
			Cost:       0.25,
			Capability: 0.25,
			Latency:    0.10,
		},
		PrivacyPreferred: []string{"local-mock"},
		AdapterTimeout:   30 * time.Second,
	}

	c.Backends = []BackendConfig{
		{
			Name:       "local-mock",
			Locality:   "local",
			Capability: float64Ptr(0.4),
			Adapter:    AdapterConfig{Type: "mock"},
		},
		{
			Name:              "remote-mock",
			Locality:          "remote",
			CostPerInputUnit:  0.005,
			CostPerOutputUnit: 0.02,
			Capability:        float64Ptr(0.8),
			Adapter:           AdapterConfig{Type: "mock"},
		},
	}

	c.Policies = []PolicyConfig{
		{Type: "privacy", Enforcement: "strict"},
	}
	c.Mappings = map[string]string{}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Gateway = GatewayConfig{
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			BurstSize:         10,
			WindowDuration:    time.Minute,
			CleanupInterval:   5 * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		},
		Validation: ValidationConfig{
			Enabled:        false,
			OpenAPISpec:    "docs/openapi.yaml",
			MaxRequestSize: 10 << 20, // 10MB
		},
	}
}

// loadFromFile loads configuration from YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("LLM_DISPATCH_PORT"); port != "" {
		c.Server.Port = port
	}

	if mode := os.Getenv("LLM_DISPATCH_MODE"); mode != "" {
		c.Engine.Mode = mode
	}

	if level := os.Getenv("LLM_DISPATCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if format := os.Getenv("LLM_DISPATCH_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	// Adapter API keys come from the conventional env vars unless the file
	// set them explicitly.
	for i := range c.Backends {
		adapter := &c.Backends[i].Adapter
		if adapter.APIKey != "" {
			continue
		}
		switch adapter.Type {
		case "anthropic":
			adapter.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			adapter.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			adapter.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if c.Engine.Mode != "policy" && c.Engine.Mode != "fde" {
		return fmt.Errorf("invalid engine mode: %s", c.Engine.Mode)
	}

	w := c.Engine.Weights
	if w.Privacy < 0 || w.Cost < 0 || w.Capability < 0 || w.Latency < 0 {
		return fmt.Errorf("engine weights must be non-negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend must be configured")
	}

	names := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend name cannot be empty")
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate backend name: %s", b.Name)
		}
		names[b.Name] = true

		if !types.Locality(b.Locality).Valid() {
			return fmt.Errorf("backend %s: invalid locality: %s", b.Name, b.Locality)
		}
		if b.CostPerInputUnit < 0 || b.CostPerOutputUnit < 0 {
			return fmt.Errorf("backend %s: costs must be non-negative", b.Name)
		}
		if b.Capability != nil && (*b.Capability < 0 || *b.Capability > 1) {
			return fmt.Errorf("backend %s: capability must be within [0, 1]", b.Name)
		}
		if b.LatencyEstimate < 0 {
			return fmt.Errorf("backend %s: latency estimate must be non-negative", b.Name)
		}
		if err := validateAdapter(b.Name, b.Adapter); err != nil {
			return err
		}
	}

	for i, p := range c.Policies {
		if err := validatePolicy(i, p); err != nil {
			return err
		}
	}

	for classification, backend := range c.Mappings {
		if classification == "" {
			return fmt.Errorf("mapping classification cannot be empty")
		}
		if !names[backend] {
			return fmt.Errorf("mapping for %s references unknown backend: %s", classification, backend)
		}
	}

	if fb := c.Engine.Fallback; fb != nil {
		if !names[fb.Primary] {
			return fmt.Errorf("fallback primary references unknown backend: %s", fb.Primary)
		}
		if !names[fb.Target] {
			return fmt.Errorf("fallback target references unknown backend: %s", fb.Target)
		}
		if fb.Primary == fb.Target {
			return fmt.Errorf("fallback target must differ from primary")
		}
	}

	for _, name := range c.Engine.PrivacyPreferred {
		if !names[name] {
			return fmt.Errorf("privacy_preferred references unknown backend: %s", name)
		}
	}

	return nil
}

func validateAdapter(backend string, a AdapterConfig) error {
	switch a.Type {
	case "mock":
		return nil
	case "ollama":
		if a.Model == "" {
			return fmt.Errorf("backend %s: ollama adapter requires a model", backend)
		}
	case "anthropic", "openai", "gemini":
		if a.Model == "" {
			return fmt.Errorf("backend %s: %s adapter requires a model", backend, a.Type)
		}
		if a.APIKey == "" {
			return fmt.Errorf("backend %s: %s adapter requires an API key", backend, a.Type)
		}
	default:
		return fmt.Errorf("backend %s: unknown adapter type: %s", backend, a.Type)
	}
	return nil
}

func validatePolicy(index int, p PolicyConfig) error {
	if !types.Enforcement(p.Enforcement).Valid() {
		return fmt.Errorf("policy %d: invalid enforcement: %s", index, p.Enforcement)
	}
	switch p.Type {
	case "privacy":
		return nil
	case "keyword":
		if len(p.Keywords) == 0 || p.Classification == "" {
			return fmt.Errorf("policy %d: keyword policy requires keywords and a classification", index)
		}
	case "metadata":
		if p.MetadataKey == "" || p.Classification == "" {
			return fmt.Errorf("policy %d: metadata policy requires a key and a classification", index)
		}
	case "fallback":
		if p.Classification == "" {
			return fmt.Errorf("policy %d: fallback policy requires a classification", index)
		}
	default:
		return fmt.Errorf("policy %d: unknown policy type: %s", index, p.Type)
	}
	return nil
}

// ToBackend converts a validated backend entry to its registry form
func (b BackendConfig) ToBackend() types.Backend {
	backend := types.NewBackend(b.Name, types.Locality(b.Locality), b.CostPerInputUnit, b.CostPerOutputUnit)
	if b.Capability != nil {
		backend.Capability = *b.Capability
	}
	backend.LatencyEstimate = b.LatencyEstimate
	return backend
}

// ToWeights converts the configured weights to engine form
func (w WeightsConfig) ToWeights() decision.Weights {
	return decision.Weights{
		Privacy:    w.Privacy,
		Cost:       w.Cost,
		Capability: w.Capability,
		Latency:    w.Latency,
	}
}

// ToRule converts a validated policy entry to its router form
func (p PolicyConfig) ToRule() (policy.Rule, error) {
	switch p.Type {
	case "privacy":
		return policy.PrivacyRule(), nil
	case "keyword":
		return policy.KeywordRule(p.Keywords, types.Classification(p.Classification)), nil
	case "metadata":
		return policy.MetadataRule(p.MetadataKey, p.MetadataValue, types.Classification(p.Classification)), nil
	case "fallback":
		return policy.FallbackRule(types.Classification(p.Classification)), nil
	default:
		return nil, fmt.Errorf("unknown policy type: %s", p.Type)
	}
}

// UseFDE reports whether the configured mode selects the decision engine
func (c *Config) UseFDE() bool {
	return c.Engine.Mode == "fde"
}

// SaveToFile saves the current configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func float64Ptr(v float64) *float64 {
	return &v
}
