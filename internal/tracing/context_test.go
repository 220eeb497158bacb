package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestRequestContext_RoundTrip(t *testing.T) {
	ctx := NewContext(context.Background(), &RequestContext{
		TraceID:   "trace-1",
		SessionID: "session-1",
		TenantID:  "acme",
		Profile:   "doc_qa",
	})

	rc := FromContext(ctx)
	assert.Equal(t, "trace-1", rc.TraceID)
	assert.Equal(t, "session-1", rc.SessionID)
	assert.Equal(t, "acme", rc.TenantID)
	assert.Equal(t, "doc_qa", rc.Profile)
}

func TestGetters_EmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSessionID(ctx))
	assert.Empty(t, GetTenantID(ctx))
	assert.Empty(t, GetProfile(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	var out bytes.Buffer
	base := zerolog.New(&out)

	ctx := WithSessionID(WithTraceID(context.Background(), "trace-42"), "s-1")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("hello")

	assert.Contains(t, out.String(), `"trace_id":"trace-42"`)
	assert.Contains(t, out.String(), `"session_id":"s-1"`)
	assert.NotContains(t, out.String(), "tenant_id")
}
