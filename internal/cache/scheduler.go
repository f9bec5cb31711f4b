package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler clears the cache on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler registers one job that clears cache on spec, evaluated in
// the named IANA timezone.
func NewScheduler(cache *ResponseCache, spec, timezone string, log *zap.Logger) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := cron.New(cron.WithLocation(location))
	if _, err := c.AddFunc(spec, func() {
		entries := cache.Len()
		cache.Clear()
		log.Info("cache cleared", zap.Int("entries", entries))
	}); err != nil {
		return nil, fmt.Errorf("schedule cache clear %q: %w", spec, err)
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cache clear scheduled", zap.Time("next", s.Next()))
}

// Next returns the next planned run; zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for a running job or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
