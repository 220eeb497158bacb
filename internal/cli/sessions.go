package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/agentengine/internal/app"
	"github.com/harun/agentengine/internal/observability"
	"github.com/harun/agentengine/pkg/hooks"
	"github.com/harun/agentengine/pkg/session"
)

func newSessionsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and delete stored sessions",
	}

	withApp := func(run func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			a, cleanup, err := root.buildApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return run(cmd, a, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			sess, err := a.Sessions.Get(cmd.Context(), args[0])
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("session %s not found", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Sessions.Delete(cmd.Context(), args[0]); err != nil {
				observability.RecordSessionAudit(cmd.Context(), "delete", "cli", "failed", map[string]interface{}{"session_id": args[0]})
				return err
			}
			observability.RecordSessionAudit(cmd.Context(), "delete", "cli", "success", map[string]interface{}{"session_id": args[0]})
			if err := a.Hooks.Trigger(cmd.Context(), hooks.EventSessionDeleted, map[string]interface{}{"session_id": args[0]}); err != nil {
				a.Logger().Warn().Err(err).Str("session_id", args[0]).Msg("Session hook failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			lister, ok := a.Sessions.(session.Lister)
			if !ok {
				return session.ErrListUnsupported
			}
			summaries, err := lister.List(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, s := range summaries {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			return nil
		}),
	})

	return cmd
}
