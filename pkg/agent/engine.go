package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/agentengine/internal/observability"
	"github.com/harun/agentengine/internal/tracing"
	"github.com/harun/agentengine/pkg/memory"
	"github.com/harun/agentengine/pkg/session"
	"github.com/harun/agentengine/pkg/skills"
	"github.com/harun/agentengine/pkg/toolexecutor"
)

// DefaultMaxIterations bounds backend calls per request
const DefaultMaxIterations = 6

const contextHeader = "\n\nRelevant context:\n"

var (
	// ErrStreamAbandoned is returned by Stream.Wait when the request was cancelled
	// before the stream completed. Nothing was saved and the trace was discarded.
	ErrStreamAbandoned = errors.New("event stream abandoned before completion")

	// ErrIterationBudget classifies the terminal error event of a request that
	// ran out of iterations. It is never returned by Wait.
	ErrIterationBudget = errors.New("iteration budget exhausted")
)

// Request outcomes reported to metrics
const (
	outcomeFinal        = "final"
	outcomeBudget       = "budget_exceeded"
	outcomeBackendError = "backend_error"
	outcomeSessionError = "session_error"
	outcomeAbandoned    = "abandoned"
)

// Config wires the engine's collaborators
type Config struct {
	Sessions  session.Store
	Tools     *toolexecutor.ToolExecutor
	Retriever memory.Retriever
	Router    *skills.Router
	Provider  LLMProvider
	Tracer    tracing.Collector
	Logger    zerolog.Logger

	// Hooks is optional; it is triggered once per request after the stream ends
	Hooks HookTrigger

	MaxIterations int
	Model         string
	Temperature   float64
	MaxTokens     int
}

// HookTrigger runs lifecycle hooks
type HookTrigger interface {
	Trigger(ctx context.Context, event string, data map[string]interface{}) error
}

// Engine runs requests against a reasoning backend and the tool executor
type Engine struct {
	sessions      session.Store
	tools         *toolexecutor.ToolExecutor
	retriever     memory.Retriever
	router        *skills.Router
	provider      LLMProvider
	tracer        tracing.Collector
	logger        zerolog.Logger
	hooks         HookTrigger
	maxIterations int
	model         string
	temperature   float64
	maxTokens     int
}

// NewEngine validates cfg and creates an engine. Retriever is optional.
func NewEngine(cfg Config) (*Engine, error) {
	observability.EnsureRegistered()

	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if cfg.Tracer == nil {
		return nil, fmt.Errorf("trace collector is required")
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	return &Engine{
		sessions:      cfg.Sessions,
		tools:         cfg.Tools,
		retriever:     cfg.Retriever,
		router:        cfg.Router,
		provider:      cfg.Provider,
		tracer:        cfg.Tracer,
		logger:        cfg.Logger,
		hooks:         cfg.Hooks,
		maxIterations: maxIterations,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
	}, nil
}

// MaxIterations returns the configured iteration budget
func (e *Engine) MaxIterations() int {
	return e.maxIterations
}

// Stream is the ordered event stream of one request.
//
// The caller must drain Events until it is closed, or call Close. A stream that
// is neither drained nor closed blocks its producer goroutine forever.
type Stream struct {
	events        chan Event
	done          chan struct{}
	cancel        context.CancelFunc
	correlationID string
	err           error
}

// Events returns the event channel. It is closed after the last event.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// CorrelationID returns the trace id shared by every event of the stream
func (s *Stream) CorrelationID() string {
	return s.correlationID
}

// Wait blocks until the request finished persisting and flushing its trace.
// It returns ErrStreamAbandoned, a backend or session store error, or nil.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Close abandons the stream and waits for the producer to stop.
// It returns the same error as Wait.
func (s *Stream) Close() error {
	s.cancel()
	for range s.events {
	}
	return s.Wait()
}

// Collect drains stream and waits for the request to finish
func Collect(stream *Stream) ([]Event, error) {
	events := []Event{}
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	return events, stream.Wait()
}

// Handle starts processing env and returns its event stream.
// Cancelling ctx abandons the request at its next suspension point.
func (e *Engine) Handle(ctx context.Context, env Envelope) *Stream {
	env = env.withDefaults()
	ctx, cancel := context.WithCancel(ctx)

	s := &Stream{
		events:        make(chan Event),
		done:          make(chan struct{}),
		cancel:        cancel,
		correlationID: env.TraceID,
	}

	go e.run(ctx, env, s)
	return s
}

// triggerCompleted runs request:completed hooks. Hook failures are logged only.
func (e *Engine) triggerCompleted(ctx context.Context, r *requestRun, outcome string) {
	if e.hooks == nil {
		return
	}
	err := e.hooks.Trigger(ctx, "request:completed", map[string]interface{}{
		"session_id": r.env.SessionID,
		"trace_id":   r.env.TraceID,
		"tenant_id":  r.env.TenantID,
		"profile":    r.profile,
		"outcome":    outcome,
		"iterations": r.iterations,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("Request hook failed")
	}
}

// requestRun holds the state of one request while its loop runs
type requestRun struct {
	engine     *Engine
	env        Envelope
	out        chan<- Event
	logger     zerolog.Logger
	profile    string
	iterations int
}

func (e *Engine) run(ctx context.Context, env Envelope, s *Stream) {
	defer close(s.done)
	defer s.cancel()

	start := time.Now()
	observability.RequestStarted()
	defer observability.RequestFinished()

	ctx = tracing.NewContext(ctx, &tracing.RequestContext{
		TraceID:   env.TraceID,
		SessionID: env.SessionID,
		TenantID:  env.TenantID,
	})
	ctx, span := tracing.StartSpan(ctx, "agentengine.agent", "agent.handle",
		attribute.String("role", string(env.Role)),
		attribute.String("user_id", env.UserID),
	)
	defer span.End()

	r := &requestRun{
		engine: e,
		env:    env,
		out:    s.events,
		logger: tracing.LoggerFromContext(ctx, e.logger),
	}

	sess, messages, outcome, err := r.loop(ctx)
	close(s.events)

	defer func() {
		observability.RecordRequest(r.profile, outcome, time.Since(start), r.iterations)
		e.triggerCompleted(context.WithoutCancel(ctx), r, outcome)
	}()

	if err != nil {
		if errors.Is(err, ErrStreamAbandoned) {
			outcome = outcomeAbandoned
		}
		s.err = err
		tracing.FailSpan(span, err)
		dropped := e.tracer.Discard(context.WithoutCancel(ctx), env.TraceID)
		r.logger.Warn().
			Err(err).
			Str("outcome", outcome).
			Int("discarded_trace_records", dropped).
			Msg("Request ended without persisting session")
		return
	}

	// The consumer has drained every event; finishing must not depend on its context.
	finishCtx := context.WithoutCancel(ctx)

	sess.Turns = messages
	sess.TraceID = env.TraceID
	if err := e.sessions.Save(finishCtx, sess); err != nil {
		s.err = fmt.Errorf("failed to save session %s: %w", sess.ID, err)
		tracing.FailSpan(span, s.err)
		r.logger.Error().Err(err).Msg("Failed to save session")
	}

	r.trace(finishCtx, tracing.RecordHandleDone, map[string]interface{}{
		"total_latency_ms": millis(time.Since(start)),
	})
	if err := e.tracer.Flush(finishCtx, env.TraceID); err != nil {
		r.logger.Error().Err(err).Msg("Failed to flush trace")
	}

	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("iterations", r.iterations),
	)
	r.logger.Info().
		Str("outcome", outcome).
		Int("iterations", r.iterations).
		Int("turns", len(messages)).
		Dur("duration", time.Since(start)).
		Msg("Request completed")
}

// loop runs load, route, pre-fetch, assembly and the bounded backend cycle.
// It returns the loaded session and the turns to persist.
func (r *requestRun) loop(ctx context.Context) (*session.Session, []session.Turn, string, error) {
	e := r.engine
	env := r.env

	// 1. load
	sess, err := e.sessions.Get(ctx, env.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		sess = session.New(env.SessionID, env.TenantID, env.UserID)
		sess.TraceID = env.TraceID
	} else if err != nil {
		if ctx.Err() != nil {
			return nil, nil, outcomeAbandoned, ErrStreamAbandoned
		}
		return nil, nil, outcomeSessionError, fmt.Errorf("failed to load session %s: %w", env.SessionID, err)
	}

	// 2. route
	skill, cleaned := e.router.Route(env.Text)
	r.profile = skill.Name()
	sess.SelectedProfile = skill.Name()
	ctx = tracing.WithProfile(ctx, skill.Name())
	r.logger = r.logger.With().Str("profile", skill.Name()).Logger()
	r.trace(ctx, tracing.RecordRoute, map[string]interface{}{
		"profile":       skill.Name(),
		"original_text": env.Text,
		"cleaned_text":  cleaned,
	})

	// 3. pre-fetch
	chunks, err := r.prefetch(ctx, skill, cleaned)
	if err != nil {
		return nil, nil, outcomeAbandoned, err
	}

	// 4. assemble
	messages := assembleMessages(sess.Turns, skill.SystemPrompt(), chunks, cleaned)

	// 5. tools
	schemas := e.tools.SchemasFor(string(env.Role), skill.AllowedTools())
	if len(schemas) == 0 {
		schemas = nil
	}

	// 6. bounded cycle
	for iteration := 0; iteration < e.maxIterations; iteration++ {
		r.iterations = iteration + 1

		resp, err := r.callBackend(ctx, messages, schemas, iteration)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, outcomeAbandoned, ErrStreamAbandoned
			}
			return nil, nil, outcomeBackendError, err
		}

		if resp.HasToolCalls() {
			messages, err = r.runTools(ctx, messages, resp.ToolCalls)
			if err != nil {
				return nil, nil, outcomeAbandoned, err
			}
			continue
		}

		if resp.Content == "" {
			r.logger.Warn().Int("iteration", iteration).Msg("Backend returned neither content nor tool calls")
			continue
		}

		if err := r.emitFinal(ctx, resp.Content); err != nil {
			return nil, nil, outcomeAbandoned, err
		}
		messages = append(messages, session.AssistantTextTurn(resp.Content))
		return sess, messages, outcomeFinal, nil
	}

	// 7. budget exhausted
	msg := fmt.Sprintf("Max iterations (%d) reached without final answer", e.maxIterations)
	r.logger.Warn().Int("max_iterations", e.maxIterations).Msg("Iteration budget exhausted")
	if err := r.emit(ctx, EventError, map[string]interface{}{
		"error":          msg,
		"kind":           ErrIterationBudget.Error(),
		"max_iterations": e.maxIterations,
	}); err != nil {
		return nil, nil, outcomeAbandoned, err
	}
	return sess, messages, outcomeBudget, nil
}

func (r *requestRun) prefetch(ctx context.Context, skill skills.Skill, text string) ([]memory.Chunk, error) {
	start := time.Now()
	chunks, err := skill.PreRetrieve(ctx, text, r.engine.retriever)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrStreamAbandoned
		}
		r.logger.Warn().Err(err).Msg("Context pre-fetch failed, continuing without context")
		return nil, nil
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	r.trace(ctx, tracing.RecordRetrieve, map[string]interface{}{
		"count":      len(chunks),
		"latency_ms": millis(time.Since(start)),
	})
	if err := r.emit(ctx, EventRetrieve, map[string]interface{}{"chunks": chunks}); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *requestRun) callBackend(ctx context.Context, messages []session.Turn, schemas []toolexecutor.ToolSchema, iteration int) (*LLMResponse, error) {
	e := r.engine
	start := time.Now()
	resp, err := e.provider.Call(ctx, LLMRequest{
		Model:       e.model,
		Messages:    messages,
		Tools:       schemas,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	latency := time.Since(start)
	observability.RecordBackendCall(e.provider.Provider(), latency, err == nil)

	if err != nil {
		r.logger.Error().Err(err).Int("iteration", iteration).Str("provider", e.provider.Provider()).Msg("Backend call failed")
		return nil, fmt.Errorf("backend call failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("backend call failed: %s returned no response", e.provider.Provider())
	}

	r.trace(ctx, tracing.RecordLLMCall, map[string]interface{}{
		"iteration":      iteration,
		"latency_ms":     millis(latency),
		"has_tool_calls": resp.HasToolCalls(),
	})
	r.logger.Debug().
		Int("iteration", iteration).
		Bool("has_tool_calls", resp.HasToolCalls()).
		Dur("latency", latency).
		Msg("Backend call completed")
	return resp, nil
}

// runTools records the calls as one assistant turn, then executes them in order.
// Tool failures become an error event plus an error-shaped result.
func (r *requestRun) runTools(ctx context.Context, messages []session.Turn, calls []ToolCall) ([]session.Turn, error) {
	e := r.engine
	role := string(r.env.Role)

	records := make([]session.ToolCallRecord, 0, len(calls))
	for i := range calls {
		if calls[i].Arguments == nil {
			calls[i].Arguments = map[string]interface{}{}
		}
		records = append(records, session.ToolCallRecord{
			ID:        calls[i].ID,
			Name:      calls[i].Name,
			Arguments: marshalString(calls[i].Arguments),
		})
	}
	messages = append(messages, session.AssistantToolCallsTurn(records))

	for _, call := range calls {
		if err := r.emit(ctx, EventToolCall, map[string]interface{}{
			"id":        call.ID,
			"name":      call.Name,
			"arguments": call.Arguments,
		}); err != nil {
			return nil, err
		}

		result, err := e.tools.Execute(ctx, call.Name, role, call.Arguments, e.tracer, r.env.TraceID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrStreamAbandoned
			}

			kind := toolexecutor.KindOf(err)
			r.logger.Warn().Err(err).Str("tool", call.Name).Str("kind", string(kind)).Msg("Tool call failed")
			if kind == toolexecutor.KindPermission {
				observability.RecordToolAudit(ctx, call.Name, role, "denied", map[string]interface{}{
					"session_id": r.env.SessionID,
					"user_id":    r.env.UserID,
				})
			}

			result = map[string]interface{}{"error": err.Error()}
			if err := r.emit(ctx, EventError, map[string]interface{}{
				"tool":  call.Name,
				"error": err.Error(),
				"kind":  string(kind),
			}); err != nil {
				return nil, err
			}
		}

		if err := r.emit(ctx, EventToolResult, map[string]interface{}{
			"id":     call.ID,
			"name":   call.Name,
			"result": result,
		}); err != nil {
			return nil, err
		}
		messages = append(messages, session.ToolResultTurn(call.ID, marshalString(result)))
	}

	return messages, nil
}

// emitFinal streams text as space-delimited tokens, then the final event
func (r *requestRun) emitFinal(ctx context.Context, text string) error {
	for _, token := range splitTokens(text) {
		if err := r.emit(ctx, EventToken, map[string]interface{}{"text": token}); err != nil {
			return err
		}
	}
	return r.emit(ctx, EventFinal, map[string]interface{}{"text": text})
}

// emit delivers one event, or fails once the request context is done
func (r *requestRun) emit(ctx context.Context, t EventType, data map[string]interface{}) error {
	if ctx.Err() != nil {
		return ErrStreamAbandoned
	}
	select {
	case r.out <- newEvent(t, r.env.TraceID, data):
		return nil
	case <-ctx.Done():
		return ErrStreamAbandoned
	}
}

func (r *requestRun) trace(ctx context.Context, event string, fields map[string]interface{}) {
	if err := r.engine.tracer.Emit(ctx, r.env.TraceID, event, fields); err != nil {
		r.logger.Warn().Err(err).Str("event", event).Msg("Failed to record trace event")
	}
}

// assembleMessages copies history, upserts the system turn at index 0 and appends the user turn
func assembleMessages(history []session.Turn, prompt string, chunks []memory.Chunk, text string) []session.Turn {
	messages := session.CloneTurns(history)

	system := prompt
	if len(chunks) > 0 {
		parts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			parts = append(parts, fmt.Sprintf("[%s] %s", c.Source, c.Text))
		}
		system += contextHeader + strings.Join(parts, "\n\n")
	}

	if len(messages) > 0 && messages[0].Kind == session.KindSystem {
		messages[0] = session.SystemTurn(system)
	} else {
		messages = append([]session.Turn{session.SystemTurn(system)}, messages...)
	}

	return append(messages, session.UserTurn(text))
}

// splitTokens splits on single spaces, keeping the space on every token but the last
func splitTokens(text string) []string {
	words := strings.Split(text, " ")
	tokens := make([]string, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		tokens[i] = w
	}
	return tokens
}

func marshalString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

func millis(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}
