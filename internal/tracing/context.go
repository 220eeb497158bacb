package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for the correlation (trace) id
	TraceIDKey ContextKey = "trace_id"
	// SessionIDKey is the context key for the session id
	SessionIDKey ContextKey = "session_id"
	// TenantIDKey is the context key for the tenant id
	TenantIDKey ContextKey = "tenant_id"
	// ProfileKey is the context key for the selected behavior profile
	ProfileKey ContextKey = "profile"
)

// RequestContext holds the identifiers that follow a single engine request
type RequestContext struct {
	TraceID   string
	SessionID string
	TenantID  string
	Profile   string
}

// NewTraceID generates a new correlation id
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithTenantID adds a tenant ID to the context
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// WithProfile adds the selected profile name to the context
func WithProfile(ctx context.Context, profile string) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string {
	return stringValue(ctx, SessionIDKey)
}

// GetTenantID retrieves the tenant ID from the context
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, TenantIDKey)
}

// GetProfile retrieves the profile name from the context
func GetProfile(ctx context.Context) string {
	return stringValue(ctx, ProfileKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// FromContext extracts all request identifiers from the context
func FromContext(ctx context.Context) *RequestContext {
	return &RequestContext{
		TraceID:   GetTraceID(ctx),
		SessionID: GetSessionID(ctx),
		TenantID:  GetTenantID(ctx),
		Profile:   GetProfile(ctx),
	}
}

// NewContext returns ctx carrying every non-empty identifier of rc
func NewContext(ctx context.Context, rc *RequestContext) context.Context {
	if rc.TraceID != "" {
		ctx = WithTraceID(ctx, rc.TraceID)
	}
	if rc.SessionID != "" {
		ctx = WithSessionID(ctx, rc.SessionID)
	}
	if rc.TenantID != "" {
		ctx = WithTenantID(ctx, rc.TenantID)
	}
	if rc.Profile != "" {
		ctx = WithProfile(ctx, rc.Profile)
	}
	return ctx
}
