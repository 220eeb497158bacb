package agent

import (
	"context"
	"fmt"

	"github.com/harun/agentengine/pkg/session"
	"github.com/harun/agentengine/pkg/toolexecutor"
)

// LLMProvider is the reasoning backend contract
type LLMProvider interface {
	// Call returns either final content or tool calls for the conversation so far
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call.
// Messages starts with the system turn.
type LLMRequest struct {
	Model       string
	Messages    []session.Turn
	Tools       []toolexecutor.ToolSchema
	Temperature float64
	MaxTokens   int
}

// LLMResponse carries final content or tool calls, never both
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// HasToolCalls reports whether the backend requested tools
func (r *LLMResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// BackendConfig selects and configures a provider
type BackendConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider from backend configuration
func (f *ProviderFactory) NewProvider(cfg BackendConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	case "demo", "":
		return NewDemoProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
