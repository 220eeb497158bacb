package toolexecutor

import (
	"errors"
	"fmt"
)

// Kind classifies tool failures
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindPermission Kind = "permission"
	KindValidation Kind = "validation"
	KindTimeout    Kind = "timeout"
	KindExecution  Kind = "execution"
)

var (
	ErrNotFound   = errors.New("tool not found")
	ErrPermission = errors.New("permission denied")
	ErrValidation = errors.New("validation failed")
	ErrTimeout    = errors.New("tool timed out")
	ErrExecution  = errors.New("tool execution failed")
)

// ToolError is returned by Execute. It matches the sentinel of its Kind with errors.Is.
type ToolError struct {
	Kind    Kind
	Tool    string
	Attempt int
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tool %s: %s", e.Tool, e.Kind)
	}
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *ToolError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindPermission:
		return ErrPermission
	case KindValidation:
		return ErrValidation
	case KindTimeout:
		return ErrTimeout
	case KindExecution:
		return ErrExecution
	}
	return nil
}

// KindOf returns the kind of a ToolError anywhere in err's chain, or "" if there is none
func KindOf(err error) Kind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func newToolError(kind Kind, tool string, attempt int, err error) *ToolError {
	return &ToolError{Kind: kind, Tool: tool, Attempt: attempt, Err: err}
}
