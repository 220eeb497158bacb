// Package config loads agentengine configuration from a file and AGENTENGINE_ environment variables.
package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/agentengine/pkg/hooks"
)

// Config represents the agentengine configuration
type Config struct {
	// Backend selects the reasoning backend
	Backend BackendConfig `json:"backend" mapstructure:"backend"`

	// Engine tunes the orchestration loop
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Sessions selects the session store
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Tracing configures the audit trace sink and spans
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Retrieval configures the knowledge corpus
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`

	// ProfilesFile optionally replaces the built-in profiles and routes
	ProfilesFile string `json:"profiles_file" mapstructure:"profiles_file"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Server is the HTTP adapter
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Hooks are shell scripts run on request and session lifecycle events
	Hooks []hooks.Hook `json:"hooks,omitempty" mapstructure:"hooks"`
}

// BackendConfig holds reasoning backend settings
type BackendConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // demo, openai, anthropic
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// EngineConfig holds orchestration loop settings
type EngineConfig struct {
	MaxIterations int `json:"max_iterations" mapstructure:"max_iterations"`
}

// SessionsConfig holds session store settings
type SessionsConfig struct {
	Driver          string        `json:"driver" mapstructure:"driver"` // memory, file, sqlite, redis
	Dir             string        `json:"dir" mapstructure:"dir"`
	DSN             string        `json:"dsn" mapstructure:"dsn"`
	RedisAddr       string        `json:"redis_addr" mapstructure:"redis_addr"`
	TTL             time.Duration `json:"ttl" mapstructure:"ttl"`
	CleanupSchedule string        `json:"cleanup_schedule" mapstructure:"cleanup_schedule"`
	CleanupAge      time.Duration `json:"cleanup_age" mapstructure:"cleanup_age"`
}

// TracingConfig holds trace sink settings
type TracingConfig struct {
	Dir         string `json:"dir" mapstructure:"dir"`
	OTel        bool   `json:"otel" mapstructure:"otel"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// RetrievalConfig holds corpus locations; empty paths use the built-in samples
type RetrievalConfig struct {
	CorpusFile string `json:"corpus_file" mapstructure:"corpus_file"`
	LogsFile   string `json:"logs_file" mapstructure:"logs_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	Format    string `json:"format" mapstructure:"format"` // console, json
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"` // audit events go to stderr when empty
}

// ServerConfig holds HTTP adapter configuration
type ServerConfig struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Provider:  "demo",
			Model:     "demo",
			MaxTokens: 1024,
		},
		Engine: EngineConfig{
			MaxIterations: 6,
		},
		Sessions: SessionsConfig{
			Driver:          "memory",
			TTL:             24 * time.Hour,
			CleanupSchedule: "@hourly",
			CleanupAge:      24 * time.Hour,
		},
		Tracing: TracingConfig{
			Dir:         "traces",
			ServiceName: "agentengine",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			Redaction: true,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// String returns a JSON representation of the config with the API key masked
func (c *Config) String() string {
	masked := *c
	if masked.Backend.APIKey != "" {
		masked.Backend.APIKey = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
