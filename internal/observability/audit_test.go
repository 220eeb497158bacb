package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/harun/agentengine/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_Record(t *testing.T) {
	var out bytes.Buffer
	audit := NewAuditLogger(zerolog.New(&out))

	ctx := tracing.WithTraceID(context.Background(), "trace-7")
	audit.Record(ctx, AuditEvent{
		Type:     "session",
		Actor:    "cli",
		Action:   "delete",
		Status:   "success",
		Metadata: map[string]interface{}{"session_id": "s-1"},
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "session", entry["type"])
	assert.Equal(t, "delete", entry["action"])
	assert.Equal(t, "trace-7", entry["trace_id"])
	assert.Equal(t, "s-1", entry["metadata"].(map[string]interface{})["session_id"])
}

func TestMetricsHandler(t *testing.T) {
	RecordToolExecution("log_search", 0, "success")
	RecordBackendCall("demo", 0, true)
	assert.NotNil(t, MetricsHandler())
}
