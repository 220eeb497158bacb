package toolexecutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/agentengine/internal/observability"
	"github.com/harun/agentengine/internal/tracing"
)

const (
	// DefaultTimeout bounds one handler attempt when a definition sets none
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries applies when a definition leaves MaxRetries at zero
	DefaultMaxRetries = 1
	// NoRetries makes a definition run exactly one attempt
	NoRetries = -1

	auditEvent = "tool_exec"
)

// ToolHandler is the function signature for tool execution.
// The returned value must marshal to a JSON object.
type ToolHandler func(ctx context.Context, input map[string]interface{}) (interface{}, error)

// ToolDefinition defines a tool's metadata, schemas, access and handler
type ToolDefinition struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	InputSchema  map[string]interface{} `json:"input_schema"`
	OutputSchema map[string]interface{} `json:"output_schema,omitempty"`
	Handler      ToolHandler            `json:"-"`
	AllowedRoles []string               `json:"allowed_roles"`
	Timeout      time.Duration          `json:"timeout"`

	// MaxRetries is the number of extra attempts after a failure. Zero, including
	// an explicit zero, means DefaultMaxRetries; use NoRetries for a single attempt.
	MaxRetries int `json:"max_retries"`
}

// ToolSchema is the descriptor handed to the reasoning backend
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// AuditSink receives one record per attempt. tracing.Collector satisfies it.
type AuditSink interface {
	Emit(ctx context.Context, traceID, event string, fields map[string]interface{}) error
}

type registeredTool struct {
	def    ToolDefinition
	input  *gojsonschema.Schema
	output *gojsonschema.Schema
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools map[string]*registeredTool
	order []string
	mu    sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	te := &ToolExecutor{
		tools: make(map[string]*registeredTool),
	}

	log.Info().Msg("Tool executor initialized")

	return te
}

// RegisterTool registers a tool, replacing any tool with the same name
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	if def.InputSchema == nil {
		def.InputSchema = map[string]interface{}{"type": "object"}
	}
	if def.Timeout <= 0 {
		def.Timeout = DefaultTimeout
	}
	if def.MaxRetries == 0 {
		def.MaxRetries = DefaultMaxRetries
	} else if def.MaxRetries < 0 {
		def.MaxRetries = 0
	}
	def.AllowedRoles = append([]string(nil), def.AllowedRoles...)

	input, err := compileSchema(def.InputSchema)
	if err != nil {
		return fmt.Errorf("invalid input schema for %s: %w", def.Name, err)
	}
	var output *gojsonschema.Schema
	if def.OutputSchema != nil {
		output, err = compileSchema(def.OutputSchema)
		if err != nil {
			return fmt.Errorf("invalid output schema for %s: %w", def.Name, err)
		}
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; !exists {
		te.order = append(te.order, def.Name)
	} else {
		log.Warn().Str("tool", def.Name).Msg("Tool re-registered, replacing previous definition")
	}
	te.tools[def.Name] = &registeredTool{def: def, input: input, output: output}

	log.Info().
		Str("tool", def.Name).
		Strs("roles", def.AllowedRoles).
		Dur("timeout", def.Timeout).
		Int("max_retries", def.MaxRetries).
		Msg("Tool registered")

	return nil
}

// UnregisterTool removes a tool
func (te *ToolExecutor) UnregisterTool(name string) {
	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[name]; !exists {
		return
	}
	delete(te.tools, name)
	for i, n := range te.order {
		if n == name {
			te.order = append(te.order[:i], te.order[i+1:]...)
			break
		}
	}

	log.Info().Str("tool", name).Msg("Tool unregistered")
}

// GetTool returns a copy of a tool definition by name, or nil
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	tool, ok := te.tools[name]
	if !ok {
		return nil
	}
	def := tool.def
	return &def
}

// ListTools returns all registered tool names in registration order
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return append([]string(nil), te.order...)
}

// ListForRole returns the names of tools role may invoke, in registration order
func (te *ToolExecutor) ListForRole(role string) []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	names := []string{}
	for _, name := range te.order {
		if te.tools[name].allows(role) {
			names = append(names, name)
		}
	}
	return names
}

// GetToolCount returns the number of registered tools
func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return len(te.tools)
}

// SchemasFor returns descriptors for tools that role may invoke and whose name is in allowed.
// The result is in registration order and empty when nothing qualifies.
func (te *ToolExecutor) SchemasFor(role string, allowed []string) []ToolSchema {
	schemas := []ToolSchema{}
	if len(allowed) == 0 {
		return schemas
	}

	wanted := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		wanted[name] = struct{}{}
	}

	te.mu.RLock()
	defer te.mu.RUnlock()

	for _, name := range te.order {
		if _, ok := wanted[name]; !ok {
			continue
		}
		tool := te.tools[name]
		if !tool.allows(role) {
			continue
		}
		schemas = append(schemas, ToolSchema{
			Name:        tool.def.Name,
			Description: tool.def.Description,
			InputSchema: tool.def.InputSchema,
		})
	}
	return schemas
}

// Execute runs a tool for role. Attempts are audited to sink when both sink and traceID are set.
// On failure the last attempt's *ToolError is returned.
func (te *ToolExecutor) Execute(ctx context.Context, name, role string, input map[string]interface{}, sink AuditSink, traceID string) (map[string]interface{}, error) {
	te.mu.RLock()
	tool := te.tools[name]
	te.mu.RUnlock()

	if tool == nil {
		log.Warn().Str("tool", name).Msg("Tool not found")
		observability.RecordToolExecution(name, 0, string(KindNotFound))
		return nil, newToolError(KindNotFound, name, 0, fmt.Errorf("%q is not registered", name))
	}

	if !tool.allows(role) {
		log.Warn().Str("tool", name).Str("role", role).Msg("Tool execution denied for role")
		observability.RecordToolExecution(name, 0, string(KindPermission))
		return nil, newToolError(KindPermission, name, 0, fmt.Errorf("role %q may not invoke this tool", role))
	}

	if input == nil {
		input = map[string]interface{}{}
	}
	if err := validateAgainst(tool.input, input); err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Input validation failed")
		observability.RecordToolExecution(name, 0, string(KindValidation))
		return nil, newToolError(KindValidation, name, 0, fmt.Errorf("input: %w", err))
	}

	ctx, span := tracing.StartSpan(ctx, "toolexecutor", "toolexecutor.execute",
		attribute.String("tool.name", name),
		attribute.String("tool.role", role),
	)
	defer span.End()

	start := time.Now()
	attempts := tool.def.MaxRetries + 1
	var lastErr *ToolError

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptStart := time.Now()
		output, err := te.attempt(ctx, tool, input, attempt)
		latency := time.Since(attemptStart)

		observability.RecordToolAttempt(name, err == nil)
		te.audit(ctx, sink, traceID, name, attempt, latency, err)

		if err == nil {
			span.SetAttributes(attribute.Int("tool.attempts", attempt))
			observability.RecordToolExecution(name, time.Since(start), "ok")
			log.Debug().
				Str("tool", name).
				Int("attempt", attempt).
				Dur("duration", latency).
				Msg("Tool execution completed")
			return output, nil
		}

		lastErr = err
		log.Warn().
			Str("tool", name).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("kind", string(err.Kind)).
			Err(err.Err).
			Msg("Tool attempt failed")

		if ctx.Err() != nil {
			break
		}
	}

	span.SetAttributes(attribute.Int("tool.attempts", lastErr.Attempt))
	tracing.FailSpan(span, lastErr)
	observability.RecordToolExecution(name, time.Since(start), string(lastErr.Kind))
	return nil, lastErr
}

// attempt runs the handler once under the tool timeout and validates its output
func (te *ToolExecutor) attempt(ctx context.Context, tool *registeredTool, input map[string]interface{}, attempt int) (map[string]interface{}, *ToolError) {
	name := tool.def.Name
	timeoutCtx, cancel := context.WithTimeout(ctx, tool.def.Timeout)
	defer cancel()

	type result struct {
		value interface{}
		err   error
	}
	resultChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- result{err: fmt.Errorf("handler panicked: %v", r)}
			}
		}()
		value, err := tool.def.Handler(timeoutCtx, copyInput(input))
		resultChan <- result{value: value, err: err}
	}()

	var res result
	select {
	case res = <-resultChan:
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return nil, newToolError(KindExecution, name, attempt, ctx.Err())
		}
		return nil, newToolError(KindTimeout, name, attempt, fmt.Errorf("exceeded %v", tool.def.Timeout))
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, newToolError(KindTimeout, name, attempt, res.err)
		}
		return nil, newToolError(KindExecution, name, attempt, res.err)
	}

	output, err := coerceOutput(res.value)
	if err != nil {
		return nil, newToolError(KindValidation, name, attempt, fmt.Errorf("output: %w", err))
	}
	if tool.output != nil {
		if err := validateAgainst(tool.output, output); err != nil {
			return nil, newToolError(KindValidation, name, attempt, fmt.Errorf("output: %w", err))
		}
	}
	return output, nil
}

func (te *ToolExecutor) audit(ctx context.Context, sink AuditSink, traceID, name string, attempt int, latency time.Duration, err *ToolError) {
	if sink == nil || traceID == "" {
		return
	}

	fields := map[string]interface{}{
		"tool":       name,
		"attempt":    attempt,
		"latency_ms": float64(latency.Microseconds()) / 1000,
		"status":     "ok",
	}
	if err != nil {
		fields["status"] = "error"
		fields["error"] = err.Error()
	}

	if emitErr := sink.Emit(ctx, traceID, auditEvent, fields); emitErr != nil {
		log.Warn().Err(emitErr).Str("tool", name).Msg("Failed to record tool audit")
	}
}

func (t *registeredTool) allows(role string) bool {
	for _, r := range t.def.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// validateToolDefinition validates a tool definition
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	if len(def.AllowedRoles) == 0 {
		return fmt.Errorf("tool %s must allow at least one role", def.Name)
	}
	for _, role := range def.AllowedRoles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("tool %s has an empty role", def.Name)
		}
	}
	return nil
}

func compileSchema(schema map[string]interface{}) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
}

func validateAgainst(schema *gojsonschema.Schema, doc map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// coerceOutput normalizes a handler result to a JSON object
func coerceOutput(value interface{}) (map[string]interface{}, error) {
	if value == nil {
		return nil, fmt.Errorf("handler returned no value")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("result is not serializable: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return nil, fmt.Errorf("result must be a JSON object")
	}
	return out, nil
}

func copyInput(input map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}
