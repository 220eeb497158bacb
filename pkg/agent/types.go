package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harun/agentengine/pkg/session"
)

// Role is the caller's access role
type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

const (
	DefaultTenantID = "default"
	DefaultUserID   = "anonymous"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

// ParseRole parses a role name case-insensitively. An empty name is RoleUser.
func ParseRole(s string) (Role, error) {
	if strings.TrimSpace(s) == "" {
		return RoleUser, nil
	}
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// ErrEmptyText is returned when an envelope carries no text
var ErrEmptyText = errors.New("envelope text is required")

// Envelope is one inbound request
type Envelope struct {
	SessionID string `json:"session_id"`
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	TraceID   string `json:"trace_id"`
}

// EnvelopeOption customizes NewEnvelope
type EnvelopeOption func(*Envelope)

func WithSessionID(id string) EnvelopeOption { return func(e *Envelope) { e.SessionID = id } }
func WithTenantID(id string) EnvelopeOption  { return func(e *Envelope) { e.TenantID = id } }
func WithUserID(id string) EnvelopeOption    { return func(e *Envelope) { e.UserID = id } }
func WithRole(role Role) EnvelopeOption      { return func(e *Envelope) { e.Role = role } }
func WithTraceID(id string) EnvelopeOption   { return func(e *Envelope) { e.TraceID = id } }

// NewEnvelope builds an envelope for text with defaults for every unset field
func NewEnvelope(text string, opts ...EnvelopeOption) Envelope {
	env := Envelope{Text: text}
	for _, opt := range opts {
		opt(&env)
	}
	return env.withDefaults()
}

// Normalize fills defaults on a decoded envelope and validates it
func (e Envelope) Normalize() (Envelope, error) {
	if strings.TrimSpace(e.Text) == "" {
		return Envelope{}, ErrEmptyText
	}
	if e.Role != "" {
		role, err := ParseRole(string(e.Role))
		if err != nil {
			return Envelope{}, err
		}
		e.Role = role
	}
	e = e.withDefaults()
	if err := session.ValidateID(e.SessionID); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	return e, nil
}

func (e Envelope) withDefaults() Envelope {
	if e.SessionID == "" {
		e.SessionID = uuid.New().String()
	}
	if e.TraceID == "" {
		e.TraceID = uuid.New().String()
	}
	if e.TenantID == "" {
		e.TenantID = DefaultTenantID
	}
	if e.UserID == "" {
		e.UserID = DefaultUserID
	}
	if e.Role == "" {
		e.Role = RoleUser
	}
	return e
}

// ToolCall represents a tool invocation requested by the backend
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
