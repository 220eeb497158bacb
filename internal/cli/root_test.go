package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a config that keeps sessions and traces under a temp dir
func writeTestConfig(t *testing.T, extra ...func(cfg map[string]interface{}, dir string)) (cfgPath, sessionsDir string) {
	t.Helper()

	dir := t.TempDir()
	sessionsDir = filepath.Join(dir, "sessions")
	cfg := map[string]interface{}{
		"sessions": map[string]interface{}{"driver": "file", "dir": sessionsDir},
		"tracing":  map[string]interface{}{"dir": filepath.Join(dir, "traces")},
		"logging":  map[string]interface{}{"level": "error", "format": "json"},
	}
	for _, fn := range extra {
		fn(cfg, dir)
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cfgPath = filepath.Join(dir, "agentengine.json")
	require.NoError(t, os.WriteFile(cfgPath, raw, 0o600))
	return cfgPath, sessionsDir
}

// execute runs the command tree with args and returns stdout
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeLines(t *testing.T, out string) []map[string]interface{} {
	t.Helper()

	var events []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		events = append(events, ev)
	}
	return events
}

func TestRootCommand(t *testing.T) {
	t.Run("help lists subcommands", func(t *testing.T) {
		out, err := execute(t, "", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "agentengine")
		assert.Contains(t, out, "ask")
		assert.Contains(t, out, "serve")
		assert.Contains(t, out, "sessions")
	})

	t.Run("version", func(t *testing.T) {
		out, err := execute(t, "", "--version")
		require.NoError(t, err)
		assert.Contains(t, out, "version "+GetVersion())
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := NewRootCmd()
		assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
		assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	})
}

func TestAskCommand(t *testing.T) {
	cfgPath, sessionsDir := writeTestConfig(t)

	t.Run("text from args", func(t *testing.T) {
		out, err := execute(t, "", "--config", cfgPath, "ask", "--session", "cli-1", "/gpu", "GPU0", "fell", "off", "the", "bus")
		require.NoError(t, err)

		events := decodeLines(t, out)
		require.NotEmpty(t, events)
		assert.Equal(t, "final", events[len(events)-1]["type"])
		for _, ev := range events {
			assert.NotEmpty(t, ev["correlation_id"])
		}

		_, err = os.Stat(filepath.Join(sessionsDir, "cli-1.json"))
		assert.NoError(t, err)
	})

	t.Run("envelope from stdin", func(t *testing.T) {
		out, err := execute(t, `{"session_id":"cli-2","text":"/gpu ECC errors on GPU3"}`, "--config", cfgPath, "ask")
		require.NoError(t, err)

		events := decodeLines(t, out)
		assert.Equal(t, "final", events[len(events)-1]["type"])

		show, err := execute(t, "", "--config", cfgPath, "sessions", "show", "cli-2")
		require.NoError(t, err)
		assert.Contains(t, show, `"session_id": "cli-2"`)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := execute(t, "   ", "--config", cfgPath, "ask")
		assert.Error(t, err)
	})

	t.Run("unsafe session id", func(t *testing.T) {
		out, err := execute(t, "", "--config", cfgPath, "ask", "--session", "../escape", "hello")
		require.Error(t, err)
		assert.Empty(t, out)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := execute(t, "", "--config", cfgPath, "ask", "--role", "root", "hello")
		assert.Error(t, err)
	})
}

func TestReadEnvelope(t *testing.T) {
	env, err := readEnvelope(strings.NewReader("ignored"), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a b", env.Text)

	env, err = readEnvelope(strings.NewReader("  plain text \n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", env.Text)

	env, err = readEnvelope(strings.NewReader(`{"text":"hi","role":"admin"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", env.Text)
	assert.EqualValues(t, "admin", env.Role)

	env, err = readEnvelope(strings.NewReader(`{not json`), nil)
	require.NoError(t, err)
	assert.Equal(t, "{not json", env.Text)
}

func TestSessionsCommand(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	_, err := execute(t, "", "--config", cfgPath, "ask", "--session", "keep", "hello")
	require.NoError(t, err)

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, "", "--config", cfgPath, "sessions", "list")
		require.NoError(t, err)
		assert.Contains(t, out, `"session_id":"keep"`)
	})

	t.Run("show missing", func(t *testing.T) {
		_, err := execute(t, "", "--config", cfgPath, "sessions", "show", "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("delete", func(t *testing.T) {
		out, err := execute(t, "", "--config", cfgPath, "sessions", "delete", "keep")
		require.NoError(t, err)
		assert.Contains(t, out, "deleted keep")

		_, err = execute(t, "", "--config", cfgPath, "sessions", "show", "keep")
		assert.Error(t, err)
	})

	t.Run("requires id", func(t *testing.T) {
		_, err := execute(t, "", "--config", cfgPath, "sessions", "show")
		assert.Error(t, err)
	})
}

func TestSessionsDelete_Hooks(t *testing.T) {
	var marker string
	cfgPath, _ := writeTestConfig(t, func(cfg map[string]interface{}, dir string) {
		marker = filepath.Join(dir, "deleted.txt")
		cfg["hooks"] = []map[string]interface{}{
			{"id": "record", "event": "session:deleted", "script": `echo "$AGENTENGINE_HOOK_DATA_SESSION_ID" > ` + marker, "enabled": true},
			{"id": "broken", "event": "session:deleted", "script": "exit 1", "enabled": true},
		}
	})

	_, err := execute(t, "", "--config", cfgPath, "ask", "--session", "gone", "hello")
	require.NoError(t, err)

	out, err := execute(t, "", "--config", cfgPath, "sessions", "delete", "gone")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted gone")

	content, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "gone\n", string(content))
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := newServeCmd(&rootOptions{})
	assert.NotNil(t, cmd.Flags().Lookup("host"))
	assert.NotNil(t, cmd.Flags().Lookup("port"))
}
