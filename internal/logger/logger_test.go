package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json output at level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(Config{Level: "warn", Format: FormatJSON}, &buf)

		l.Info().Msg("hidden")
		l.Warn().Str("tool", "log_search").Msg("Tool call failed")

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.Len(t, lines, 1)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(lines[0], &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "log_search", entry["tool"])
		assert.Contains(t, entry, "time")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		l := NewWithWriter(Config{Level: "loud"}, &bytes.Buffer{})
		assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
	})

	t.Run("redaction", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(Config{Level: "info", Format: FormatJSON, Redaction: true}, &buf)
		require.NotNil(t, l.Redactor())

		l.Info().Str("auth", "Bearer abc.def.ghi").Msg("calling backend")
		assert.NotContains(t, buf.String(), "abc.def.ghi")
		assert.Contains(t, buf.String(), redacted)
	})
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agentengine.log")

	l, err := New(Config{Level: "debug", Format: FormatConsole, File: path})
	require.NoError(t, err)
	l.Debug().Msg("written to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"written to file"`)
}

func TestLogger_SetGlobal(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	var buf bytes.Buffer
	NewWithWriter(Config{Level: "info", Format: FormatJSON}, &buf).SetGlobal()
	log.Info().Msg("via global")
	assert.Contains(t, buf.String(), "via global")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, FormatConsole, cfg.Format)
	assert.True(t, cfg.Redaction)
}
