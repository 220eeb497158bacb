// Package coretools provides the built-in tools available to behavior profiles.
package coretools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/harun/agentengine/pkg/memory"
	"github.com/harun/agentengine/pkg/toolexecutor"
)

const (
	LogSearchName = "log_search"
	KBQueryName   = "kb_query"

	kbQueryK       = 3
	noLogsFoundMsg = "No matching logs found."
)

// DefaultRoles may invoke every built-in tool
var DefaultRoles = []string{"user", "operator", "admin"}

// Options configures core tool registration.
type Options struct {
	// Retriever backs kb_query. Required.
	Retriever memory.Retriever
	// Logs is the corpus searched by log_search; nil uses SampleLogs.
	Logs []string
}

// RegisterCoreTools registers log_search and kb_query.
func RegisterCoreTools(executor *toolexecutor.ToolExecutor, opts Options) error {
	if executor == nil {
		return errors.New("tool executor is required")
	}
	if opts.Retriever == nil {
		return errors.New("retriever is required for kb_query")
	}

	tools := []toolexecutor.ToolDefinition{
		NewLogSearchTool(opts.Logs),
		NewKBQueryTool(opts.Retriever),
	}

	for _, tool := range tools {
		if err := executor.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

// SampleLogs returns the built-in infrastructure log lines
func SampleLogs() []string {
	return []string{
		"2024-01-15 10:01 GPU0: temperature 85C, utilization 98%",
		"2024-01-15 10:02 GPU1: ECC error detected, count=3",
		"2024-01-15 10:03 GPU0: CUDA OOM at batch_size=128",
		"2024-01-15 10:04 GPU2: driver version mismatch warning",
		"2024-01-15 10:05 GPU1: NVLink error, peer GPU3 unreachable",
		"2024-01-15 10:06 GPU3: fan speed 0 RPM, possible failure",
		"2024-01-15 10:07 GPU0: Xid 79, GPU has fallen off the bus",
	}
}

// LoadLogs reads one log line per non-blank line of path
func LoadLogs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open logs file: %w", err)
	}
	defer f.Close()

	lines := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read logs file: %w", err)
	}
	return lines, nil
}

func queryInputSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": description,
			},
		},
		"required": []interface{}{"query"},
	}
}

func stringListOutputSchema(field string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			field: map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []interface{}{field},
	}
}

// NewLogSearchTool returns a tool matching log lines that contain any query word
func NewLogSearchTool(logs []string) toolexecutor.ToolDefinition {
	if logs == nil {
		logs = SampleLogs()
	}

	return toolexecutor.ToolDefinition{
		Name:         LogSearchName,
		Description:  "Search infrastructure logs for GPU/system events matching a query.",
		InputSchema:  queryInputSchema("Keywords to look for in the logs"),
		OutputSchema: stringListOutputSchema("results"),
		AllowedRoles: DefaultRoles,
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			query, _ := input["query"].(string)
			words := strings.Fields(strings.ToLower(query))

			hits := []string{}
			for _, line := range logs {
				lower := strings.ToLower(line)
				for _, w := range words {
					if strings.Contains(lower, w) {
						hits = append(hits, line)
						break
					}
				}
			}
			if len(hits) == 0 {
				hits = []string{noLogsFoundMsg}
			}

			return map[string]interface{}{"results": hits}, nil
		},
	}
}

// NewKBQueryTool returns a tool answering with the texts of the top retrieved chunks
func NewKBQueryTool(retriever memory.Retriever) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:         KBQueryName,
		Description:  "Query the knowledge base for relevant documentation snippets.",
		InputSchema:  queryInputSchema("What to look up in the knowledge base"),
		OutputSchema: stringListOutputSchema("snippets"),
		AllowedRoles: DefaultRoles,
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			query, _ := input["query"].(string)
			chunks, err := retriever.Retrieve(ctx, query, kbQueryK)
			if err != nil {
				return nil, fmt.Errorf("knowledge base lookup failed: %w", err)
			}

			snippets := make([]string, 0, len(chunks))
			for _, c := range chunks {
				snippets = append(snippets, c.Text)
			}
			return map[string]interface{}{"snippets": snippets}, nil
		},
	}
}
