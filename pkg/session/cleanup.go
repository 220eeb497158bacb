package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/harun/agentengine/internal/observability"
)

// Cleaner is a store that can enumerate and delete sessions
type Cleaner interface {
	Store
	Lister
}

// Cleanup deletes sessions idle longer than MaxAge on a cron schedule
type Cleanup struct {
	store    Cleaner
	schedule cron.Schedule
	maxAge   time.Duration
	now      func() time.Time
	cron     *cron.Cron
}

// NewCleanup parses a standard five-field cron expression
func NewCleanup(store Cleaner, expr string, maxAge time.Duration) (*Cleanup, error) {
	if store == nil {
		return nil, fmt.Errorf("cleanup requires a store")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("cleanup max age must be positive")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule: %w", err)
	}

	return &Cleanup{
		store:    store,
		schedule: sched,
		maxAge:   maxAge,
		now:      time.Now,
	}, nil
}

// RunOnce deletes every idle session and returns how many were removed
func (c *Cleanup) RunOnce(ctx context.Context) (int, error) {
	summaries, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	cutoff := c.now().Add(-c.maxAge)
	deleted := 0
	for _, sum := range summaries {
		if !sum.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := c.store.Delete(ctx, sum.ID); err != nil {
			log.Warn().Err(err).Str("session_id", sum.ID).Msg("Failed to delete idle session")
			continue
		}
		deleted++
	}

	observability.RecordSessionsDeleted("idle", deleted)
	if deleted > 0 {
		log.Info().Int("deleted", deleted).Dur("max_age", c.maxAge).Msg("Idle sessions removed")
	}
	return deleted, nil
}

// Run schedules RunOnce and blocks until ctx is done
func (c *Cleanup) Run(ctx context.Context) error {
	c.cron = cron.New()
	c.cron.Schedule(c.schedule, cron.FuncJob(func() {
		if _, err := c.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Session cleanup failed")
		}
	}))
	c.cron.Start()
	log.Info().Time("next_run", c.schedule.Next(c.now())).Msg("Session cleanup scheduled")

	<-ctx.Done()
	stopped := c.cron.Stop()
	<-stopped.Done()
	return nil
}
