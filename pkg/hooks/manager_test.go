package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	t.Run("skips disabled hooks", func(t *testing.T) {
		m, err := NewManager(Config{Logger: zerolog.Nop(), Hooks: []Hook{
			{Event: EventRequestCompleted, Script: "true", Enabled: true},
			{Event: EventRequestCompleted, Script: "true"},
		}})
		require.NoError(t, err)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("requires event", func(t *testing.T) {
		_, err := NewManager(Config{Hooks: []Hook{{Script: "true", Enabled: true}}})
		assert.Error(t, err)
	})

	t.Run("requires script", func(t *testing.T) {
		_, err := NewManager(Config{Hooks: []Hook{{Event: EventSessionDeleted, Enabled: true}}})
		assert.Error(t, err)
	})

	t.Run("nil manager", func(t *testing.T) {
		var m *Manager
		assert.Equal(t, 0, m.Len())
		assert.NoError(t, m.Trigger(context.Background(), EventRequestCompleted, nil))
	})
}

func TestManagerTriggerInjectsEventData(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "env.txt")
	script := `echo "$AGENTENGINE_HOOK_EVENT:$AGENTENGINE_HOOK_DATA_SESSION_ID:$AGENTENGINE_HOOK_DATA_OUTCOME" > ` + outputPath

	m, err := NewManager(Config{
		Logger: zerolog.Nop(),
		Hooks:  []Hook{{ID: "audit", Event: EventRequestCompleted, Script: script, Enabled: true}},
	})
	require.NoError(t, err)

	require.NoError(t, m.Trigger(context.Background(), EventRequestCompleted, map[string]interface{}{
		"session_id": "s-42",
		"outcome":    "final",
	}))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "request:completed:s-42:final\n", string(content))
}

func TestManagerTriggerOnlyMatchingEvent(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "deleted.txt")

	m, err := NewManager(Config{
		Logger: zerolog.Nop(),
		Hooks:  []Hook{{Event: EventSessionDeleted, Script: "echo x > " + outputPath, Enabled: true}},
	})
	require.NoError(t, err)

	require.NoError(t, m.Trigger(context.Background(), EventRequestCompleted, nil))
	_, err = os.Stat(outputPath)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, m.Trigger(context.Background(), " ", nil))
}

func TestManagerTriggerReturnsJoinedErrors(t *testing.T) {
	m, err := NewManager(Config{
		Logger: zerolog.Nop(),
		Hooks: []Hook{
			{ID: "fail-1", Event: EventSessionDeleted, Script: "exit 2", Enabled: true},
			{ID: "fail-2", Event: EventSessionDeleted, Script: "echo nope; exit 3", Enabled: true},
		},
	})
	require.NoError(t, err)

	err = m.Trigger(context.Background(), EventSessionDeleted, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook fail-1 failed")
	assert.Contains(t, err.Error(), "hook fail-2 failed")
	assert.Contains(t, err.Error(), "nope")
}

func TestManagerTriggerRespectsTimeout(t *testing.T) {
	m, err := NewManager(Config{
		Logger: zerolog.Nop(),
		Hooks:  []Hook{{ID: "slow", Event: EventRequestCompleted, Script: "sleep 1", Timeout: 30 * time.Millisecond, Enabled: true}},
	})
	require.NoError(t, err)

	err = m.Trigger(context.Background(), EventRequestCompleted, nil)
	require.Error(t, err)
	assert.True(t,
		strings.Contains(err.Error(), "deadline exceeded") || strings.Contains(err.Error(), "signal: killed"),
		"expected timeout-related error, got: %v", err,
	)
}

func TestNormalizeEnvKey(t *testing.T) {
	assert.Equal(t, "SESSION_ID", normalizeEnvKey("session_id"))
	assert.Equal(t, "TRACE_ID", normalizeEnvKey(" trace-id "))
	assert.Equal(t, "UNKNOWN", normalizeEnvKey(""))
}
