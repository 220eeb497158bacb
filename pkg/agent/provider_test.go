package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentengine/pkg/session"
	"github.com/harun/agentengine/pkg/toolexecutor"
)

// captureServer answers every request with body and keeps the last request payload
type captureServer struct {
	*httptest.Server
	mu   sync.Mutex
	path string
	body map[string]interface{}
}

func newCaptureServer(t *testing.T, body string) *captureServer {
	t.Helper()
	cs := &captureServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		cs.mu.Lock()
		cs.path = r.URL.Path
		cs.body = map[string]interface{}{}
		_ = json.Unmarshal(raw, &cs.body)
		cs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *captureServer) lastRequest() (string, map[string]interface{}) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.path, cs.body
}

func conversation() LLMRequest {
	return LLMRequest{
		Model: "test-model",
		Messages: []session.Turn{
			session.SystemTurn("be helpful"),
			session.UserTurn("why is GPU0 hot"),
			session.AssistantToolCallsTurn([]session.ToolCallRecord{
				{ID: "c1", Name: "log_search", Arguments: `{"query":"GPU0"}`},
				{ID: "c2", Name: "kb_query", Arguments: `{"query":"temperature"}`},
			}),
			session.ToolResultTurn("c1", `{"results":["GPU0: temperature 85C"]}`),
			session.ToolResultTurn("c2", `{"snippets":["keep it under 83C"]}`),
		},
		Tools: []toolexecutor.ToolSchema{{
			Name:        "log_search",
			Description: "Search logs",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"query"},
			},
		}},
		MaxTokens: 256,
	}
}

func TestOpenAIProvider_Call(t *testing.T) {
	t.Run("tool calls", func(t *testing.T) {
		srv := newCaptureServer(t, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "test-model",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [{"id": "call_9", "type": "function",
					"function": {"name": "log_search", "arguments": "{\"query\":\"xid\"}"}}]
			}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`)

		p := NewOpenAIProvider("test-key", srv.URL+"/")
		resp, err := p.Call(context.Background(), conversation())
		require.NoError(t, err)
		require.True(t, resp.HasToolCalls())
		assert.Equal(t, "call_9", resp.ToolCalls[0].ID)
		assert.Equal(t, "log_search", resp.ToolCalls[0].Name)
		assert.Equal(t, map[string]interface{}{"query": "xid"}, resp.ToolCalls[0].Arguments)
		assert.Equal(t, 12, resp.Usage.InputTokens)

		path, body := srv.lastRequest()
		assert.True(t, strings.HasSuffix(path, "/chat/completions"))
		assert.Equal(t, "test-model", body["model"])

		msgs := body["messages"].([]interface{})
		require.Len(t, msgs, 5)
		roles := []string{}
		for _, m := range msgs {
			roles = append(roles, m.(map[string]interface{})["role"].(string))
		}
		assert.Equal(t, []string{"system", "user", "assistant", "tool", "tool"}, roles)
		assert.Equal(t, "c1", msgs[3].(map[string]interface{})["tool_call_id"])

		tools := body["tools"].([]interface{})
		require.Len(t, tools, 1)
	})

	t.Run("content", func(t *testing.T) {
		srv := newCaptureServer(t, `{
			"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "all good"}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3}
		}`)

		p := NewOpenAIProvider("test-key", srv.URL+"/")
		resp, err := p.Call(context.Background(), LLMRequest{Model: "test-model", Messages: []session.Turn{session.UserTurn("hi")}})
		require.NoError(t, err)
		assert.False(t, resp.HasToolCalls())
		assert.Equal(t, "all good", resp.Content)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := newCaptureServer(t, `{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`)

		p := NewOpenAIProvider("test-key", srv.URL+"/")
		_, err := p.Call(context.Background(), LLMRequest{Model: "m", Messages: []session.Turn{session.UserTurn("hi")}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no response choices")
	})
}

func TestAnthropicProvider_Call(t *testing.T) {
	srv := newCaptureServer(t, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "test-model",
		"content": [
			{"type": "text", "text": "Checking logs."},
			{"type": "tool_use", "id": "tu_1", "name": "log_search", "input": {"query": "GPU0"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 20, "output_tokens": 7}
	}`)

	p := NewAnthropicProvider("test-key", srv.URL+"/")
	resp, err := p.Call(context.Background(), conversation())
	require.NoError(t, err)
	require.True(t, resp.HasToolCalls())
	assert.Equal(t, "tu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, map[string]interface{}{"query": "GPU0"}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 7, resp.Usage.OutputTokens)

	path, body := srv.lastRequest()
	assert.True(t, strings.HasSuffix(path, "/messages"))
	assert.EqualValues(t, 256, body["max_tokens"])

	system := body["system"].([]interface{})
	assert.Equal(t, "be helpful", system[0].(map[string]interface{})["text"])

	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]interface{})
	assert.Equal(t, "user", last["role"])
	assert.Len(t, last["content"].([]interface{}), 2)
}

func TestAnthropicMessages(t *testing.T) {
	msgs := anthropicMessages(conversation().Messages)
	require.Len(t, msgs, 3)
	assert.Equal(t, "be helpful", systemPrompt(conversation().Messages))

	t.Run("empty arguments become an object", func(t *testing.T) {
		turns := []session.Turn{
			session.UserTurn("hi"),
			session.AssistantToolCallsTurn([]session.ToolCallRecord{{ID: "c", Name: "n"}}),
			session.ToolResultTurn("c", "{}"),
			session.AssistantTextTurn("done"),
		}
		assert.Len(t, anthropicMessages(turns), 4)
	})
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields(map[string]interface{}{"required": []string{"a"}}))
	assert.Equal(t, []string{"a", "b"}, requiredFields(map[string]interface{}{"required": []interface{}{"a", 1, "b"}}))
	assert.Nil(t, requiredFields(map[string]interface{}{}))
}

func TestDecodeArguments(t *testing.T) {
	args, err := decodeArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = decodeArguments("null")
	require.NoError(t, err)
	assert.NotNil(t, args)

	_, err = decodeArguments("{broken")
	assert.Error(t, err)
}

func TestProviderFactory_NewProvider(t *testing.T) {
	f := &ProviderFactory{}

	tests := []struct {
		name     string
		cfg      BackendConfig
		provider string
		wantErr  bool
	}{
		{name: "default is demo", cfg: BackendConfig{}, provider: "demo"},
		{name: "demo", cfg: BackendConfig{Provider: "demo"}, provider: "demo"},
		{name: "openai", cfg: BackendConfig{Provider: "openai", APIKey: "k"}, provider: "openai"},
		{name: "anthropic", cfg: BackendConfig{Provider: "anthropic", APIKey: "k"}, provider: "anthropic"},
		{name: "openai without key", cfg: BackendConfig{Provider: "openai"}, wantErr: true},
		{name: "anthropic without key", cfg: BackendConfig{Provider: "anthropic"}, wantErr: true},
		{name: "unknown", cfg: BackendConfig{Provider: "gemini"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.NewProvider(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p.Provider())
		})
	}
}

func TestDemoProvider_Call(t *testing.T) {
	p := NewDemoProvider()
	ctx := context.Background()

	t.Run("calls first tool with last user text", func(t *testing.T) {
		resp, err := p.Call(ctx, LLMRequest{
			Messages: []session.Turn{session.SystemTurn("x"), session.UserTurn("find ECC")},
			Tools:    []toolexecutor.ToolSchema{{Name: "log_search"}, {Name: "kb_query"}},
		})
		require.NoError(t, err)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "log_search", resp.ToolCalls[0].Name)
		assert.Equal(t, "find ECC", resp.ToolCalls[0].Arguments["query"])
		assert.True(t, strings.HasPrefix(resp.ToolCalls[0].ID, "demo-"))
	})

	t.Run("summarizes plain tool result", func(t *testing.T) {
		resp, err := p.Call(ctx, LLMRequest{
			Messages: []session.Turn{
				session.SystemTurn("docs assistant"),
				session.UserTurn("q"),
				session.ToolResultTurn("c", `{"snippets":["a"]}`),
			},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(resp.Content, "Based on the gathered information: "))
	})

	t.Run("structured gpu diagnosis", func(t *testing.T) {
		resp, err := p.Call(ctx, LLMRequest{
			Messages: []session.Turn{
				session.SystemTurn("GPU expert"),
				session.UserTurn("q"),
				session.ToolResultTurn("c", `{"results":["GPU1: ECC error"]}`),
			},
		})
		require.NoError(t, err)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(resp.Content), &out))
		assert.Equal(t, []interface{}{"GPU1: ECC error"}, out["evidence"])
	})

	t.Run("no tools", func(t *testing.T) {
		resp, err := p.Call(ctx, LLMRequest{Messages: []session.Turn{session.UserTurn("hello")}})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Content)
		assert.False(t, resp.HasToolCalls())
	})
}

func TestScriptedProvider(t *testing.T) {
	p := NewScriptedProvider(&LLMResponse{Content: "one"})

	resp, err := p.Call(context.Background(), LLMRequest{Messages: []session.Turn{session.UserTurn("a")}})
	require.NoError(t, err)
	assert.Equal(t, "one", resp.Content)

	resp, err = p.Call(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, scriptedExhausted, resp.Content)
	assert.Equal(t, 2, p.CallCount())
	assert.Equal(t, "a", p.Requests()[0].Messages[0].Content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Call(ctx, LLMRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, p.CallCount())
}
