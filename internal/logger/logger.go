// Package logger builds the process zerolog logger from configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // console or json
	File      string // append to this file instead of stderr
	Redaction bool   // scrub credentials before writing
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    FormatConsole,
		Redaction: true,
	}
}

// Logger is a configured zerolog.Logger that owns its output file
type Logger struct {
	zerolog.Logger
	file     *os.File
	redactor *Redactor
}

// New creates a logger. Output goes to stderr unless cfg.File is set,
// so that command output on stdout stays machine readable.
func New(cfg Config) (*Logger, error) {
	var out io.Writer = os.Stderr
	var file *os.File

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		out = f
	}

	l := NewWithWriter(cfg, out)
	l.file = file
	return l, nil
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		w = redactor.Wrap(w)
	}

	// console output is only pretty-printed for interactive files
	if cfg.Format == FormatConsole && cfg.File == "" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return &Logger{
		Logger:   zerolog.New(w).Level(level).With().Timestamp().Logger(),
		redactor: redactor,
	}
}

// SetGlobal makes l the logger behind github.com/rs/zerolog/log
func (l *Logger) SetGlobal() {
	log.Logger = l.Logger
}

// Redactor returns the redactor in use, or nil
func (l *Logger) Redactor() *Redactor {
	return l.redactor
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
