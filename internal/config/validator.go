package config

import (
	"fmt"
	"strings"
)

var (
	validProviders = []string{"demo", "openai", "anthropic"}
	validDrivers   = []string{"memory", "file", "sqlite", "redis"}
	validLevels    = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"console", "json"}
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider validates a backend provider name
func (v *Validator) ValidateProvider(provider string) error {
	return oneOf("backend provider", provider, validProviders)
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	switch provider {
	case "anthropic":
		if key == "" {
			return fmt.Errorf("%s API key cannot be empty", provider)
		}
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if key == "" {
			return fmt.Errorf("%s API key cannot be empty", provider)
		}
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}
	return nil
}

// ValidateModel requires a model for real providers
func (v *Validator) ValidateModel(model, provider string) error {
	if provider != "demo" && strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty for provider %s", provider)
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateMaxIterations validates the engine iteration budget
func (v *Validator) ValidateMaxIterations(n int) error {
	if n <= 0 {
		return fmt.Errorf("engine max_iterations must be positive, got %d", n)
	}
	return nil
}

// ValidateSessions validates the session store section
func (v *Validator) ValidateSessions(cfg SessionsConfig) []error {
	var errs []error
	if err := oneOf("session driver", cfg.Driver, validDrivers); err != nil {
		return append(errs, err)
	}

	switch cfg.Driver {
	case "sqlite":
		if cfg.DSN == "" {
			errs = append(errs, fmt.Errorf("sessions.dsn is required for the sqlite driver"))
		}
	case "redis":
		if cfg.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("sessions.redis_addr is required for the redis driver"))
		}
		if cfg.TTL < 0 {
			errs = append(errs, fmt.Errorf("sessions.ttl must be >= 0"))
		}
	}
	if cfg.CleanupAge < 0 {
		errs = append(errs, fmt.Errorf("sessions.cleanup_age must be >= 0"))
	}
	return errs
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, validLevels)
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(v.ValidateProvider(cfg.Backend.Provider))
	add(v.ValidateAPIKey(cfg.Backend.APIKey, cfg.Backend.Provider))
	add(v.ValidateModel(cfg.Backend.Model, cfg.Backend.Provider))
	add(v.ValidateTemperature(cfg.Backend.Temperature))
	if cfg.Backend.MaxTokens != 0 {
		add(v.ValidateMaxTokens(cfg.Backend.MaxTokens))
	}
	add(v.ValidateMaxIterations(cfg.Engine.MaxIterations))
	errs = append(errs, v.ValidateSessions(cfg.Sessions)...)
	add(v.ValidateLogLevel(cfg.Logging.Level))
	add(oneOf("log format", cfg.Logging.Format, validFormats))
	add(v.ValidatePort(cfg.Server.Port))
	if strings.TrimSpace(cfg.Tracing.Dir) == "" {
		add(fmt.Errorf("tracing.dir is required"))
	}

	return errs
}

func oneOf(what, value string, valid []string) error {
	for _, candidate := range valid {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (must be one of: %s)", what, value, strings.Join(valid, ", "))
}
