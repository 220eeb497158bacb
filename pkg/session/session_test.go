package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurn_Role(t *testing.T) {
	tests := []struct {
		turn Turn
		role string
	}{
		{SystemTurn("sys"), "system"},
		{UserTurn("hi"), "user"},
		{AssistantTextTurn("answer"), "assistant"},
		{AssistantToolCallsTurn([]ToolCallRecord{{ID: "c1", Name: "kb_query", Arguments: "{}"}}), "assistant"},
		{ToolResultTurn("c1", `{"ok":true}`), "tool"},
	}

	for _, tt := range tests {
		t.Run(string(tt.turn.Kind), func(t *testing.T) {
			assert.Equal(t, tt.role, tt.turn.Role())
			assert.NoError(t, tt.turn.Validate())
		})
	}
}

func TestTurn_Validate(t *testing.T) {
	t.Run("tool call turn without calls", func(t *testing.T) {
		err := Turn{Kind: KindAssistantToolCalls}.Validate()
		assert.Error(t, err)
	})

	t.Run("tool call missing name", func(t *testing.T) {
		err := AssistantToolCallsTurn([]ToolCallRecord{{ID: "c1"}}).Validate()
		assert.Error(t, err)
	})

	t.Run("tool result without call id", func(t *testing.T) {
		err := ToolResultTurn("", "{}").Validate()
		assert.Error(t, err)
	})

	t.Run("user turn with tool fields", func(t *testing.T) {
		err := Turn{Kind: KindUser, Content: "x", ToolCallID: "c1"}.Validate()
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := Turn{Kind: "narration"}.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown turn kind")
	})
}

func TestSession_Clone(t *testing.T) {
	s := New("s1", "t1", "u1")
	s.Append(UserTurn("hello"), AssistantToolCallsTurn([]ToolCallRecord{{ID: "c1", Name: "log_search", Arguments: "{}"}}))

	clone := s.Clone()
	require.Equal(t, s, clone)

	clone.Turns[0].Content = "changed"
	clone.Turns[1].ToolCalls[0].Name = "changed"
	clone.Append(AssistantTextTurn("more"))

	assert.Equal(t, "hello", s.Turns[0].Content)
	assert.Equal(t, "log_search", s.Turns[1].ToolCalls[0].Name)
	assert.Len(t, s.Turns, 2)
}

func TestValidateID(t *testing.T) {
	valid := []string{"abc", "0f8c-11", "tenant_session.1"}
	for _, id := range valid {
		assert.NoError(t, ValidateID(id), id)
	}

	invalid := []string{"", "../etc", "a/b", `a\b`, "a\x00b"}
	for _, id := range invalid {
		assert.Error(t, ValidateID(id), id)
	}
}
