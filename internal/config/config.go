// Package config loads BytEdge configuration.
//
// Priority (highest to lowest): environment variables > config file > local .env > defaults.
// Environment keys use the BYTEDGE_ prefix with dots replaced by underscores,
// e.g. BYTEDGE_ROUTER_TIMEOUT or BYTEDGE_SERVER_PORT.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bytedge/pkg/edgetypes"
)

// EnvPrefix is the prefix for all BytEdge environment variables.
const EnvPrefix = "BYTEDGE"

// Supported generation providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// SupportedProviders lists the providers accepted by Validate.
var SupportedProviders = []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic}

// Config is the complete runtime configuration.
type Config struct {
	Provider   string                      `mapstructure:"provider"`
	Model      string                      `mapstructure:"model"`
	APIKey     string                      `mapstructure:"api_key"`
	MaxRetries int                         `mapstructure:"max_retries"`
	AgentsFile string                      `mapstructure:"agents_file"`
	Generation edgetypes.GenerationOptions `mapstructure:"generation"`
	Router     RouterConfig                `mapstructure:"router"`
	Server     ServerConfig                `mapstructure:"server"`
	Breaker    BreakerConfig               `mapstructure:"breaker"`
	LogLevel   string                      `mapstructure:"log_level"`
	LogFile    string                      `mapstructure:"log_file"`
	LogFormat  string                      `mapstructure:"log_format"`
}

// RouterConfig bounds conversation state and generation latency.
type RouterConfig struct {
	ContextWindow  int           `mapstructure:"context_window"`
	RetentionLimit int           `mapstructure:"retention_limit"`
	FallbackAgent  string        `mapstructure:"fallback_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BreakerConfig configures the circuit breaker around the generation provider.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SetDefaults registers every configuration key with its default value.
// Keys must be registered for environment overrides to be picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	gen := edgetypes.DefaultGenerationOptions()

	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("max_retries", 2)
	v.SetDefault("agents_file", "")

	v.SetDefault("generation.max_output_tokens", gen.MaxOutputTokens)
	v.SetDefault("generation.temperature", gen.Temperature)
	v.SetDefault("generation.top_p", gen.TopP)
	v.SetDefault("generation.top_k", gen.TopK)

	v.SetDefault("router.context_window", edgetypes.DefaultContextWindow)
	v.SetDefault("router.retention_limit", edgetypes.DefaultRetentionLimit)
	v.SetDefault("router.fallback_agent", "brake")
	v.SetDefault("router.timeout", 60*time.Second)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_format", "text")
}

// Load builds a Config from v. It loads dotEnvPath (when non-empty and present) into the
// process environment, then configFile (when non-empty), then environment variables.
func Load(v *viper.Viper, configFile, dotEnvPath string) (*Config, error) {
	if dotEnvPath != "" {
		if err := godotenv.Load(dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotEnvPath, err)
		}
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFromEnv(cfg.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APIKeyFromEnv returns the provider's conventional API key variable, if set.
func APIKeyFromEnv(provider string) string {
	var names []string
	switch provider {
	case ProviderGemini:
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderOpenAI:
		names = []string{"OPENAI_API_KEY"}
	case ProviderAnthropic:
		names = []string{"ANTHROPIC_API_KEY"}
	}

	for _, name := range names {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key
		}
	}
	return ""
}

// Validate checks value ranges. Agent ids are checked against the registry at wiring time.
func (c *Config) Validate() error {
	supported := false
	for _, p := range SupportedProviders {
		if c.Provider == p {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported provider %q: supported providers are %s",
			c.Provider, strings.Join(SupportedProviders, ", "))
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.Router.ContextWindow <= 0 {
		return fmt.Errorf("router.context_window must be positive, got %d", c.Router.ContextWindow)
	}
	if c.Router.RetentionLimit <= 0 {
		return fmt.Errorf("router.retention_limit must be positive, got %d", c.Router.RetentionLimit)
	}
	if strings.TrimSpace(c.Router.FallbackAgent) == "" {
		return fmt.Errorf("router.fallback_agent cannot be empty")
	}
	if c.Router.Timeout < 0 {
		return fmt.Errorf("router.timeout cannot be negative")
	}
	if c.Generation.MaxOutputTokens <= 0 {
		return fmt.Errorf("generation.max_output_tokens must be positive, got %d", c.Generation.MaxOutputTokens)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
