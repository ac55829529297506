package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DefaultSchedule refreshes at the top of every hour.
const DefaultSchedule = "0 * * * *"

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler refreshes the snapshot on a cron schedule, plus once shortly
// after start. Refresh failures are logged and never stop the loop.
type Scheduler struct {
	db       *gorm.DB
	fetcher  Fetcher
	schedule cron.Schedule
	warmup   time.Duration

	// done is signalled after every refresh attempt. Tests hook it.
	done func(n int, err error)
}

// NewScheduler validates the cron expression and returns a Scheduler. An
// empty expression means DefaultSchedule.
func NewScheduler(db *gorm.DB, f Fetcher, expr string, warmup time.Duration) (*Scheduler, error) {
	if db == nil {
		return nil, fmt.Errorf("cache: db is required")
	}
	if f == nil {
		return nil, fmt.Errorf("cache: fetcher is required")
	}
	if expr == "" {
		expr = DefaultSchedule
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cache: parse schedule %q: %w", expr, err)
	}
	if warmup < 0 {
		warmup = 0
	}
	return &Scheduler{db: db, fetcher: f, schedule: sched, warmup: warmup}, nil
}

// Next returns the next scheduled refresh after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	warm := time.NewTimer(s.warmup)
	defer warm.Stop()
	tick := time.NewTimer(time.Until(s.Next(time.Now())))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-warm.C:
			s.refresh(ctx, "startup")
		case <-tick.C:
			s.refresh(ctx, "scheduled")
			tick.Reset(time.Until(s.Next(time.Now())))
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context, kind string) {
	n, err := Refresh(ctx, s.db, s.fetcher)
	if err != nil {
		log.Printf("cache: %s refresh skipped: %v", kind, err)
	} else {
		log.Printf("cache: %s refresh complete: %d work items", kind, n)
	}
	if s.done != nil {
		s.done(n, err)
	}
}
