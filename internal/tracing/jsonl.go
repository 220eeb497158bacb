package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// JSONLCollector writes each correlation id's records to <dir>/<trace_id>.jsonl
type JSONLCollector struct {
	dir     string
	buf     *buffer
	writeMu sync.Mutex
}

// NewJSONLCollector creates the trace directory and returns a collector writing into it
func NewJSONLCollector(dir string) (*JSONLCollector, error) {
	if dir == "" {
		dir = "./traces"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	return &JSONLCollector{
		dir: dir,
		buf: newBuffer(),
	}, nil
}

// Emit buffers a record
func (c *JSONLCollector) Emit(ctx context.Context, traceID, event string, fields map[string]interface{}) error {
	if err := validateTraceID(traceID); err != nil {
		return err
	}
	c.buf.append(traceID, event, fields)
	return nil
}

// Flush appends all buffered records for traceID to its file, in emission order
func (c *JSONLCollector) Flush(ctx context.Context, traceID string) error {
	records := c.buf.take(traceID)
	if len(records) == 0 {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	path := c.Path(traceID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal trace record: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write trace record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace file: %w", err)
	}

	log.Debug().
		Str("trace_id", traceID).
		Int("records", len(records)).
		Msg("Trace flushed")

	return nil
}

// Path returns the file a correlation id is flushed to
func (c *JSONLCollector) Path(traceID string) string {
	return filepath.Join(c.dir, traceID+".jsonl")
}

func validateTraceID(traceID string) error {
	if traceID == "" {
		return fmt.Errorf("trace id cannot be empty")
	}
	if strings.Contains(traceID, "..") || strings.ContainsAny(traceID, "/\\\x00") {
		return fmt.Errorf("trace id %q is not path-safe", traceID)
	}
	return nil
}

// Discard drops buffered records for traceID
func (c *JSONLCollector) Discard(ctx context.Context, traceID string) int {
	return len(c.buf.take(traceID))
}
