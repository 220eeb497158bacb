// Package toolexecutor registers and executes role-gated, schema-validated tools.
//
// Invariants:
// - Tool names are unique; registering an existing name replaces it.
// - Input is validated against the tool's input schema before any attempt.
// - A role outside a tool's allowed roles never reaches the handler and is never audited.
// - Attempts run sequentially, each under its own timeout.
//
// Usage:
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name:         "echo",
//		Description:  "Echo input",
//		InputSchema:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}}},
//		AllowedRoles: []string{"user"},
//		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
//			return map[string]interface{}{"text": input["text"]}, nil
//		},
//	})
//	out, err := exec.Execute(ctx, "echo", "user", map[string]interface{}{"text": "hi"}, nil, "")
package toolexecutor
