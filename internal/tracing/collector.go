package tracing

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Trace record names emitted by the engine and the tool executor.
const (
	RecordRoute      = "route"
	RecordRetrieve   = "retrieve"
	RecordLLMCall    = "llm_call"
	RecordToolExec   = "tool_exec"
	RecordHandleDone = "handle_done"
)

// Collector is the append-only audit-trace sink.
// Records are buffered per correlation id and written out by Flush.
// Discard drops buffered records without writing them and reports how many were dropped.
// A correlation id must not be shared by two in-flight requests.
type Collector interface {
	Emit(ctx context.Context, traceID, event string, fields map[string]interface{}) error
	Flush(ctx context.Context, traceID string) error
	Discard(ctx context.Context, traceID string) int
}

// Record is one trace entry
type Record struct {
	Timestamp     time.Time
	CorrelationID string
	Event         string
	Fields        map[string]interface{}
}

// MarshalJSON flattens Fields next to the fixed keys
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["ts"] = float64(r.Timestamp.UnixNano()) / 1e9
	out["correlation_id"] = r.CorrelationID
	out["event"] = r.Event
	return json.Marshal(out)
}

// buffer holds pending records keyed by correlation id
type buffer struct {
	mu      sync.Mutex
	pending map[string][]Record
}

func newBuffer() *buffer {
	return &buffer{pending: make(map[string][]Record)}
}

func (b *buffer) append(traceID, event string, fields map[string]interface{}) {
	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[traceID] = append(b.pending[traceID], Record{
		Timestamp:     time.Now(),
		CorrelationID: traceID,
		Event:         event,
		Fields:        copied,
	})
}

func (b *buffer) take(traceID string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	records := b.pending[traceID]
	delete(b.pending, traceID)
	return records
}

func (b *buffer) size(traceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[traceID])
}
