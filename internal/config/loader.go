package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "AGENTENGINE"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentengine", "agentengine.json")
}

// Load reads the config file if present and applies AGENTENGINE_ environment overrides.
// A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := l.GetConfigPath()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if filepath.Ext(configPath) == "" {
				v.SetConfigType("json")
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Sessions.Dir == "" && cfg.Sessions.Driver == "file" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.Sessions.Dir = filepath.Join(home, ".agentengine", "sessions")
	}

	return cfg, nil
}

// setDefaults registers every key so that environment variables can override keys absent from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend.provider", cfg.Backend.Provider)
	v.SetDefault("backend.model", cfg.Backend.Model)
	v.SetDefault("backend.api_key", cfg.Backend.APIKey)
	v.SetDefault("backend.base_url", cfg.Backend.BaseURL)
	v.SetDefault("backend.temperature", cfg.Backend.Temperature)
	v.SetDefault("backend.max_tokens", cfg.Backend.MaxTokens)

	v.SetDefault("engine.max_iterations", cfg.Engine.MaxIterations)

	v.SetDefault("sessions.driver", cfg.Sessions.Driver)
	v.SetDefault("sessions.dir", cfg.Sessions.Dir)
	v.SetDefault("sessions.dsn", cfg.Sessions.DSN)
	v.SetDefault("sessions.redis_addr", cfg.Sessions.RedisAddr)
	v.SetDefault("sessions.ttl", cfg.Sessions.TTL)
	v.SetDefault("sessions.cleanup_schedule", cfg.Sessions.CleanupSchedule)
	v.SetDefault("sessions.cleanup_age", cfg.Sessions.CleanupAge)

	v.SetDefault("tracing.dir", cfg.Tracing.Dir)
	v.SetDefault("tracing.otel", cfg.Tracing.OTel)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)

	v.SetDefault("retrieval.corpus_file", cfg.Retrieval.CorpusFile)
	v.SetDefault("retrieval.logs_file", cfg.Retrieval.LogsFile)

	v.SetDefault("profiles_file", cfg.ProfilesFile)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
