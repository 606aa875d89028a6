// Package scheduler wraps robfig/cron with timezone awareness and
// non-overlapping job execution.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds a single job invocation. The daily cycle only performs
// the synchronous transition here; the reply watcher runs on its own.
const jobTimeout = 10 * time.Minute

// Job is a scheduled task.
type Job func(ctx context.Context) error

// Scheduler manages periodic jobs in a fixed reference timezone. A job
// still running when its next fire time arrives is skipped, not queued, so
// at most one invocation of each job is ever in flight.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	timezone *time.Location
}

// New creates a Scheduler in the given timezone.
func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid timezone %s: %w", timezone, err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
	}, nil
}

// Location returns the scheduler's reference timezone.
func (s *Scheduler) Location() *time.Location {
	return s.timezone
}

// AddJob registers a job under a 5-field cron schedule, e.g. "30 3 * * *".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		log.Printf("scheduler: starting job %s", name)
		start := time.Now()

		if err := job(ctx); err != nil {
			log.Printf("scheduler: job %s failed: %v", name, err)
		} else {
			log.Printf("scheduler: job %s completed in %v", name, time.Since(start))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	log.Printf("scheduler: added job %s (schedule: %s)", name, schedule)
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow executes a job immediately, outside the cron schedule.
func (s *Scheduler) RunNow(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log.Printf("scheduler: running job %s now", name)
	return job(ctx)
}

// NextRun returns the next fire time for a named job.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	entryID, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}
