package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when no session exists for the id
var ErrNotFound = errors.New("session not found")

// ErrListUnsupported is returned when the backing store cannot enumerate sessions
var ErrListUnsupported = errors.New("session store does not support listing")

// Store is the session persistence backend
type Store interface {
	// Get returns a copy of the stored session or ErrNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// Save replaces the stored session and stamps UpdatedAt
	Save(ctx context.Context, s *Session) error
	// Delete removes the session; deleting a missing session is not an error
	Delete(ctx context.Context, id string) error
}

// Summary describes a stored session without its turns
type Summary struct {
	ID        string    `json:"session_id"`
	TenantID  string    `json:"tenant_id"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lister is implemented by stores that can enumerate their sessions
type Lister interface {
	List(ctx context.Context) ([]Summary, error)
}

// ValidateID validates the session id for security
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("session id cannot contain '..'")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("session id cannot contain path separators")
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("session id cannot contain null bytes")
	}
	return nil
}

func summarize(s *Session) Summary {
	return Summary{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Turns:     len(s.Turns),
		UpdatedAt: s.UpdatedAt,
	}
}

func validateForSave(s *Session) error {
	if s == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if err := ValidateID(s.ID); err != nil {
		return err
	}
	for i, turn := range s.Turns {
		if err := turn.Validate(); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
	}
	return nil
}
