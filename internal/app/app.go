// Package app assembles an agent engine and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/harun/agentengine/internal/config"
	"github.com/harun/agentengine/internal/observability"
	"github.com/harun/agentengine/internal/tracing"
	"github.com/harun/agentengine/pkg/agent"
	"github.com/harun/agentengine/pkg/coretools"
	"github.com/harun/agentengine/pkg/hooks"
	"github.com/harun/agentengine/pkg/memory"
	"github.com/harun/agentengine/pkg/session"
	"github.com/harun/agentengine/pkg/skills"
	"github.com/harun/agentengine/pkg/toolexecutor"
)

const otelShutdownTimeout = 5 * time.Second

// App is a fully wired engine plus the resources it owns
type App struct {
	Config   *config.Config
	Engine   *agent.Engine
	Sessions session.Store
	Tracer   tracing.Collector
	Tools    *toolexecutor.ToolExecutor
	Router   *skills.Router
	Hooks    *hooks.Manager

	// Cleanup is nil when the session store cannot enumerate sessions
	Cleanup *session.Cleanup

	logger  zerolog.Logger
	closers []func() error
}

// Build creates every component described by cfg. Close releases them.
func Build(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		a.closers = append(a.closers, observability.CloseAuditLogger)
	}

	if cfg.Tracing.OTel {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			return nil, fmt.Errorf("failed to init opentelemetry: %w", err)
		}
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
			defer cancel()
			return tracing.ShutdownOpenTelemetry(ctx)
		})
	}

	store, err := a.buildSessions(cfg.Sessions)
	if err != nil {
		return nil, err
	}

	tracer, err := tracing.NewJSONLCollector(cfg.Tracing.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace collector: %w", err)
	}
	a.Tracer = tracer

	retriever, logs, err := loadCorpora(cfg.Retrieval)
	if err != nil {
		return nil, err
	}

	a.Tools = toolexecutor.New()
	if err := coretools.RegisterCoreTools(a.Tools, coretools.Options{Retriever: retriever, Logs: logs}); err != nil {
		return nil, err
	}

	a.Router, err = buildRouter(cfg.ProfilesFile)
	if err != nil {
		return nil, err
	}

	a.Hooks, err = hooks.NewManager(hooks.Config{Hooks: cfg.Hooks, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("invalid hooks: %w", err)
	}

	factory := &agent.ProviderFactory{}
	provider, err := factory.NewProvider(agent.BackendConfig{
		Provider:    cfg.Backend.Provider,
		Model:       cfg.Backend.Model,
		APIKey:      cfg.Backend.APIKey,
		BaseURL:     cfg.Backend.BaseURL,
		Temperature: cfg.Backend.Temperature,
		MaxTokens:   cfg.Backend.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	engineCfg := agent.Config{
		Sessions:      store,
		Tools:         a.Tools,
		Retriever:     retriever,
		Router:        a.Router,
		Provider:      provider,
		Tracer:        tracer,
		Logger:        logger.With().Str("component", "engine").Logger(),
		MaxIterations: cfg.Engine.MaxIterations,
		Model:         cfg.Backend.Model,
		Temperature:   cfg.Backend.Temperature,
		MaxTokens:     cfg.Backend.MaxTokens,
	}
	if a.Hooks.Len() > 0 {
		engineCfg.Hooks = a.Hooks
	}
	a.Engine, err = agent.NewEngine(engineCfg)
	if err != nil {
		return nil, err
	}

	observability.RecordConfigAudit(context.Background(), "build", "app", map[string]interface{}{
		"provider":        provider.Provider(),
		"model":           cfg.Backend.Model,
		"sessions_driver": cfg.Sessions.Driver,
		"profiles_file":   cfg.ProfilesFile,
		"max_iterations":  a.Engine.MaxIterations(),
		"hooks":           a.Hooks.Len(),
	})

	logger.Info().
		Str("provider", provider.Provider()).
		Str("sessions", cfg.Sessions.Driver).
		Int("tools", a.Tools.GetToolCount()).
		Int("max_iterations", a.Engine.MaxIterations()).
		Int("hooks", a.Hooks.Len()).
		Msg("Engine ready")

	ok = true
	return a, nil
}

func (a *App) buildSessions(cfg config.SessionsConfig) (session.Store, error) {
	var raw session.Store

	switch cfg.Driver {
	case "memory":
		raw = session.NewMemoryStore()
	case "file":
		fs, err := session.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file session store: %w", err)
		}
		raw = fs
	case "sqlite":
		sq, err := session.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite session store: %w", err)
		}
		a.closers = append(a.closers, sq.Close)
		raw = sq
	case "redis":
		rs := session.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.TTL)
		a.closers = append(a.closers, rs.Close)
		raw = rs
	default:
		return nil, fmt.Errorf("unsupported session driver: %s", cfg.Driver)
	}

	store := session.Instrument(raw, cfg.Driver)
	a.Sessions = store

	if _, listable := raw.(session.Lister); listable && cfg.CleanupSchedule != "" && cfg.CleanupAge > 0 {
		cleanup, err := session.NewCleanup(store, cfg.CleanupSchedule, cfg.CleanupAge)
		if err != nil {
			return nil, err
		}
		a.Cleanup = cleanup
	}

	return store, nil
}

func loadCorpora(cfg config.RetrievalConfig) (*memory.KeywordRetriever, []string, error) {
	var corpus []memory.Chunk
	if cfg.CorpusFile != "" {
		chunks, err := memory.LoadCorpus(cfg.CorpusFile)
		if err != nil {
			return nil, nil, err
		}
		corpus = chunks
	}

	var logs []string
	if cfg.LogsFile != "" {
		lines, err := coretools.LoadLogs(cfg.LogsFile)
		if err != nil {
			return nil, nil, err
		}
		logs = lines
	}

	return memory.NewKeywordRetriever(corpus), logs, nil
}

func buildRouter(profilesFile string) (*skills.Router, error) {
	if profilesFile == "" {
		return skills.NewRouter(
			[]skills.Skill{skills.NewDocQA(), skills.NewGPUDiagnosis()},
			skills.DocQAName,
			skills.DefaultRoutes()...,
		)
	}

	file, err := skills.LoadProfiles(profilesFile)
	if err != nil {
		return nil, err
	}
	defaultName := file.Default
	if defaultName == "" && len(file.Profiles) > 0 {
		defaultName = file.Profiles[0].Name()
	}
	return skills.NewRouter(file.Skills(), defaultName, file.RouteTable()...)
}

// Close releases stores, clients and the tracer provider in reverse order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Logger returns the logger the app was built with
func (a *App) Logger() *zerolog.Logger {
	return &a.logger
}
