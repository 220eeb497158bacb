package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/agentengine/pkg/agent"
)

type askOptions struct {
	session string
	role    string
	tenant  string
	user    string
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "Run one request and print its events as JSON lines",
		Long: `Run one request through the engine and print every event as one JSON
object per line. Without arguments the request is read from stdin, either as
raw text or as an envelope object such as {"text": "/gpu GPU0 is hot"}.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.session, "session", "", "session id (default: new session)")
	cmd.Flags().StringVar(&opts.role, "role", "", "caller role (user, operator, admin)")
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&opts.user, "user", "", "user id")
	return cmd
}

func runAsk(cmd *cobra.Command, root *rootOptions, opts *askOptions, args []string) error {
	env, err := readEnvelope(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if opts.session != "" {
		env.SessionID = opts.session
	}
	if opts.role != "" {
		env.Role = agent.Role(opts.role)
	}
	if opts.tenant != "" {
		env.TenantID = opts.tenant
	}
	if opts.user != "" {
		env.UserID = opts.user
	}
	env, err = env.Normalize()
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	a, cleanup, err := root.buildApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	stream := a.Engine.Handle(cmd.Context(), env)
	enc := json.NewEncoder(cmd.OutOrStdout())
	for ev := range stream.Events() {
		if err := enc.Encode(ev); err != nil {
			_ = stream.Close()
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return stream.Wait()
}

// readEnvelope takes the text from args, or from r as raw text or envelope JSON
func readEnvelope(r io.Reader, args []string) (agent.Envelope, error) {
	if len(args) > 0 {
		return agent.Envelope{Text: strings.Join(args, " ")}, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return agent.Envelope{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	raw := strings.TrimSpace(string(data))

	if strings.HasPrefix(raw, "{") {
		var env agent.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err == nil {
			return env, nil
		}
	}
	return agent.Envelope{Text: raw}, nil
}
