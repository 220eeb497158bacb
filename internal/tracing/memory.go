package tracing

import (
	"context"
	"sync"
)

// MemoryCollector keeps flushed records in memory. Useful for tests and the CLI.
type MemoryCollector struct {
	buf     *buffer
	mu      sync.Mutex
	flushed map[string][]Record
}

// NewMemoryCollector creates an empty in-memory collector
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		buf:     newBuffer(),
		flushed: make(map[string][]Record),
	}
}

// Emit buffers a record
func (c *MemoryCollector) Emit(ctx context.Context, traceID, event string, fields map[string]interface{}) error {
	c.buf.append(traceID, event, fields)
	return nil
}

// Flush moves buffered records for traceID into the flushed set
func (c *MemoryCollector) Flush(ctx context.Context, traceID string) error {
	records := c.buf.take(traceID)
	if len(records) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed[traceID] = append(c.flushed[traceID], records...)
	return nil
}

// Records returns the flushed records for traceID
func (c *MemoryCollector) Records(traceID string) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.flushed[traceID]))
	copy(out, c.flushed[traceID])
	return out
}

// Events returns the flushed record names for traceID, in order
func (c *MemoryCollector) Events(traceID string) []string {
	records := c.Records(traceID)
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Event
	}
	return names
}

// Pending returns how many records are buffered but not yet flushed
func (c *MemoryCollector) Pending(traceID string) int {
	return c.buf.size(traceID)
}

// Discard drops buffered records for traceID
func (c *MemoryCollector) Discard(ctx context.Context, traceID string) int {
	return len(c.buf.take(traceID))
}
