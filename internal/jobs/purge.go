// Package jobs runs the tavern's periodic housekeeping on a cron scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/repo"
)

var purgedRecords = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "tavern_idempotency_purged_total",
	Help: "Expired idempotency records removed by the purge job.",
})

func init() { prometheus.MustRegister(purgedRecords) }

// Scheduler owns the cron instance and the jobs registered on it.
type Scheduler struct {
	cron *cron.Cron
	db   *gorm.DB
	now  func() time.Time
}

// NewScheduler builds a UTC scheduler over db. Jobs never overlap with
// their own previous run.
func NewScheduler(db *gorm.DB) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &Scheduler{cron: c, db: db, now: time.Now}
}

// SchedulePurge registers the idempotency purge on a cron schedule (e.g. "@every 1h").
func (s *Scheduler) SchedulePurge(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = s.PurgeExpired(ctx)
	})
	return err
}

// PurgeExpired deletes idempotency records whose TTL has passed.
func (s *Scheduler) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := repo.PurgeExpiredIdempotency(ctx, s.db, s.now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("idempotency purge failed")
		return 0, err
	}
	purgedRecords.Add(float64(n))
	if n > 0 {
		log.Info().Int64("purged", n).Msg("expired idempotency records removed")
	}
	return n, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
