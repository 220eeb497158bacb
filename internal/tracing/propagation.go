package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext returns baseLogger enriched with the request identifiers found in ctx
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	rc := FromContext(ctx)
	lc := baseLogger.With()

	if rc.TraceID != "" {
		lc = lc.Str("trace_id", rc.TraceID)
	}
	if rc.SessionID != "" {
		lc = lc.Str("session_id", rc.SessionID)
	}
	if rc.TenantID != "" {
		lc = lc.Str("tenant_id", rc.TenantID)
	}
	if rc.Profile != "" {
		lc = lc.Str("profile", rc.Profile)
	}

	return lc.Logger()
}
