package agent

import (
	"context"
	"sync"

	"github.com/harun/agentengine/pkg/session"
)

const scriptedExhausted = "[mock responses exhausted]"

// ScriptedProvider replays pre-loaded responses in order and records every request.
// Once the script runs out it answers with a fixed text.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []*LLMResponse
	requests  []LLMRequest
}

// NewScriptedProvider creates a provider that returns responses in order
func NewScriptedProvider(responses ...*LLMResponse) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Provider returns the provider name
func (p *ScriptedProvider) Provider() string {
	return "scripted"
}

// Call implements LLMProvider
func (p *ScriptedProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	request.Messages = session.CloneTurns(request.Messages)
	p.requests = append(p.requests, request)

	idx := len(p.requests) - 1
	if idx >= len(p.responses) {
		return &LLMResponse{Content: scriptedExhausted}, nil
	}
	return p.responses[idx], nil
}

// CallCount returns how many times Call was invoked
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns copies of the recorded requests
func (p *ScriptedProvider) Requests() []LLMRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LLMRequest(nil), p.requests...)
}
