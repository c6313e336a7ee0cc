package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// AccrualRunner is the engine interface the scheduler drives.
type AccrualRunner interface {
	RunScheduled(now time.Time) error
}

// Scheduler triggers the monthly interest accrual run on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner AccrualRunner
	spec   string
}

func New(runner AccrualRunner, spec string) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		runner: runner,
		spec:   spec,
	}
}

// Start registers the accrual job and starts the cron loop in its own
// goroutine. Returns an error only if the schedule expression is invalid.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		started := time.Now()
		log.Printf("[SCHEDULER] Starting scheduled FD interest run")
		if err := s.runner.RunScheduled(started); err != nil {
			log.Printf("[SCHEDULER] Scheduled FD interest run failed: %v", err)
			return
		}
		log.Printf("[SCHEDULER] Scheduled FD interest run finished in %s", time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[SCHEDULER] FD interest schedule registered: %q", s.spec)
	return nil
}

// Stop halts the cron loop and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("[SCHEDULER] Stopped")
}
