package session

import (
	"fmt"
	"time"
)

// TurnKind tags the variant held by a Turn
type TurnKind string

const (
	KindSystem             TurnKind = "system"
	KindUser               TurnKind = "user"
	KindAssistantText      TurnKind = "assistant_text"
	KindAssistantToolCalls TurnKind = "assistant_tool_calls"
	KindToolResult         TurnKind = "tool_result"
)

// ToolCallRecord is a tool call requested by the backend, as recorded in history.
// Arguments holds the JSON-serialized argument object.
type ToolCallRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one role-tagged entry of a conversation.
// Which fields are meaningful depends on Kind; use the constructors.
type Turn struct {
	Kind       TurnKind         `json:"kind"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// SystemTurn creates a system prompt turn
func SystemTurn(content string) Turn {
	return Turn{Kind: KindSystem, Content: content}
}

// UserTurn creates a user turn
func UserTurn(content string) Turn {
	return Turn{Kind: KindUser, Content: content}
}

// AssistantTextTurn creates an assistant turn carrying a final answer
func AssistantTextTurn(content string) Turn {
	return Turn{Kind: KindAssistantText, Content: content}
}

// AssistantToolCallsTurn creates an assistant turn carrying tool call requests
func AssistantToolCallsTurn(calls []ToolCallRecord) Turn {
	copied := make([]ToolCallRecord, len(calls))
	copy(copied, calls)
	return Turn{Kind: KindAssistantToolCalls, ToolCalls: copied}
}

// ToolResultTurn creates a tool turn answering callID with a serialized result
func ToolResultTurn(callID, result string) Turn {
	return Turn{Kind: KindToolResult, ToolCallID: callID, Content: result}
}

// Role returns the wire role of the turn: system, user, assistant or tool
func (t Turn) Role() string {
	switch t.Kind {
	case KindAssistantText, KindAssistantToolCalls:
		return "assistant"
	case KindToolResult:
		return "tool"
	default:
		return string(t.Kind)
	}
}

// Validate checks that the fields set match the turn kind
func (t Turn) Validate() error {
	switch t.Kind {
	case KindSystem, KindUser, KindAssistantText:
		if len(t.ToolCalls) > 0 || t.ToolCallID != "" {
			return fmt.Errorf("%s turn cannot carry tool call fields", t.Kind)
		}
	case KindAssistantToolCalls:
		if len(t.ToolCalls) == 0 {
			return fmt.Errorf("assistant tool-call turn has no tool calls")
		}
		for i, call := range t.ToolCalls {
			if call.ID == "" || call.Name == "" {
				return fmt.Errorf("tool call %d is missing id or name", i)
			}
		}
	case KindToolResult:
		if t.ToolCallID == "" {
			return fmt.Errorf("tool result turn has no tool call id")
		}
	default:
		return fmt.Errorf("unknown turn kind %q", t.Kind)
	}
	return nil
}

// Session is the persisted conversation state of one session id
type Session struct {
	ID              string    `json:"session_id"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	Turns           []Turn    `json:"turns"`
	SelectedProfile string    `json:"selected_profile,omitempty"`
	TraceID         string    `json:"trace_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// New creates an empty session
func New(id, tenantID, userID string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Turns:     []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds turns to the end of the history
func (s *Session) Append(turns ...Turn) {
	s.Turns = append(s.Turns, turns...)
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Turns = CloneTurns(s.Turns)
	return &c
}

// CloneTurns deep-copies a turn slice
func CloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t
		if t.ToolCalls != nil {
			out[i].ToolCalls = make([]ToolCallRecord, len(t.ToolCalls))
			copy(out[i].ToolCalls, t.ToolCalls)
		}
	}
	return out
}
