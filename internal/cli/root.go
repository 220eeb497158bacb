// Package cli implements the agentengine command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/agentengine/internal/app"
	"github.com/harun/agentengine/internal/config"
	"github.com/harun/agentengine/internal/logger"
)

const version = "0.1.0"

// rootOptions are the global flags
type rootOptions struct {
	cfgFile  string
	logLevel string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "agentengine",
		Short: "agentengine - request-scoped agent runtime",
		Long: `agentengine routes each request to a behavior profile, pre-fetches context,
and runs a bounded loop between a reasoning backend and a role-checked tool
registry, streaming progress events as it goes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.agentengine/agentengine.json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	cmd.AddCommand(newAskCmd(opts), newServeCmd(opts), newSessionsCmd(opts))
	return cmd
}

// Execute runs the command tree with ctx
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig reads configuration and applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// buildApp loads config, installs the logger and wires the engine.
// The returned cleanup closes both.
func (o *rootOptions) buildApp(cfg *config.Config) (*app.App, func(), error) {
	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log.SetGlobal()

	a, err := app.Build(cfg, log.Logger)
	if err != nil {
		_ = log.Close()
		return nil, nil, err
	}

	return a, func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to release resources")
		}
		_ = log.Close()
	}, nil
}
