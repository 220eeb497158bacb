package skills

import (
	"context"

	"github.com/harun/agentengine/pkg/memory"
)

const (
	DocQAName        = "doc_qa"
	GPUDiagnosisName = "gpu_diagnosis"
	defaultPrefetchK = 3
)

// Skill is a behavior profile: prompt, tool allowlist and optional context pre-fetch
type Skill interface {
	Name() string
	SystemPrompt() string
	AllowedTools() []string
	// PreRetrieve returns context chunks for text; an empty result means no pre-fetch.
	PreRetrieve(ctx context.Context, text string, retriever memory.Retriever) ([]memory.Chunk, error)
}

// DocQA answers documentation questions with kb_query
type DocQA struct{}

// NewDocQA creates the general documentation profile
func NewDocQA() *DocQA {
	return &DocQA{}
}

func (*DocQA) Name() string { return DocQAName }

func (*DocQA) SystemPrompt() string {
	return "You are a helpful documentation assistant. Answer questions based on " +
		"the provided context. If the context is insufficient, say so. " +
		"Use the kb_query tool to search for additional information if needed."
}

func (*DocQA) AllowedTools() []string { return []string{"kb_query"} }

func (*DocQA) PreRetrieve(ctx context.Context, text string, retriever memory.Retriever) ([]memory.Chunk, error) {
	return prefetch(ctx, text, retriever, defaultPrefetchK)
}

// GPUDiagnosis diagnoses GPU issues and answers in a fixed JSON shape
type GPUDiagnosis struct{}

// NewGPUDiagnosis creates the structured diagnosis profile
func NewGPUDiagnosis() *GPUDiagnosis {
	return &GPUDiagnosis{}
}

func (*GPUDiagnosis) Name() string { return GPUDiagnosisName }

func (*GPUDiagnosis) SystemPrompt() string {
	return "You are a GPU infrastructure diagnosis expert. Analyze the user's " +
		"GPU issue using available tools. Search logs with log_search and " +
		"the knowledge base with kb_query to gather evidence.\n\n" +
		"IMPORTANT: Your final response MUST be valid JSON with exactly " +
		"this structure:\n" +
		"{\n" +
		"  \"summary\": \"brief diagnosis summary\",\n" +
		"  \"evidence\": [\"evidence item 1\", \"evidence item 2\"],\n" +
		"  \"next_steps\": [\"recommended action 1\", \"recommended action 2\"]\n" +
		"}"
}

func (*GPUDiagnosis) AllowedTools() []string { return []string{"log_search", "kb_query"} }

func (*GPUDiagnosis) PreRetrieve(ctx context.Context, text string, retriever memory.Retriever) ([]memory.Chunk, error) {
	return prefetch(ctx, text, retriever, defaultPrefetchK)
}

func prefetch(ctx context.Context, text string, retriever memory.Retriever, k int) ([]memory.Chunk, error) {
	if retriever == nil || k <= 0 {
		return nil, nil
	}
	return retriever.Retrieve(ctx, text, k)
}
