package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the periodic background jobs: cache eviction and, when
// configured, JIRA ingestion.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.SugaredLogger
}

func NewScheduler(log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// AddCacheJanitor evicts expired board cache entries once a minute.
func (s *Scheduler) AddCacheJanitor(cache *BoardCache) error {
	_, err := s.cron.AddFunc("@every 1m", func() {
		if n := cache.EvictExpired(); n > 0 {
			s.log.Debugf("Evicted %d expired board cache entries", n)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cache janitor: %w", err)
	}
	return nil
}

// AddJiraSync polls JIRA on the given cron schedule.
func (s *Scheduler) AddJiraSync(sync *JiraSync, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := sync.Sync(context.Background()); err != nil {
			s.log.Warnf("JIRA sync failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule JIRA sync (%q): %w", schedule, err)
	}
	return nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
