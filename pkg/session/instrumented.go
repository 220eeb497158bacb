package session

import (
	"context"
	"time"

	"github.com/harun/agentengine/internal/observability"
)

// Instrumented records load and save latency for the wrapped store
type Instrumented struct {
	Store
	driver string
}

// Instrument wraps store so its calls are reported under driver
func Instrument(store Store, driver string) *Instrumented {
	return &Instrumented{Store: store, driver: driver}
}

// Get implements Store
func (i *Instrumented) Get(ctx context.Context, id string) (*Session, error) {
	start := time.Now()
	s, err := i.Store.Get(ctx, id)
	observability.RecordSessionLoad(i.driver, time.Since(start))
	return s, err
}

// Save implements Store
func (i *Instrumented) Save(ctx context.Context, s *Session) error {
	start := time.Now()
	err := i.Store.Save(ctx, s)
	observability.RecordSessionSave(i.driver, time.Since(start))
	return err
}

// List implements Lister when the wrapped store does
func (i *Instrumented) List(ctx context.Context) ([]Summary, error) {
	lister, ok := i.Store.(Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return lister.List(ctx)
}

// Unwrap returns the wrapped store
func (i *Instrumented) Unwrap() Store {
	return i.Store
}
