package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is one sweep pass. Jobs must be idempotent: the sweeper will run the
// same pass again on the next tick regardless of what the previous one did.
type Job func(ctx context.Context) error

// Sweeper periodically runs an idempotent job. A failing job is retried with
// exponential backoff instead of the regular interval, so a struggling
// dependency is not hammered at full cadence.
type Sweeper struct {
	name     string
	interval time.Duration
	job      Job
	backoff  Backoff
	logger   *zerolog.Logger

	done chan struct{}
}

func NewSweeper(name string, interval time.Duration, job Job, backoff Backoff, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if backoff.Base == 0 {
		backoff.Base = 2 * time.Second
	}
	if backoff.Cap == 0 {
		backoff.Cap = interval
	}

	return &Sweeper{
		name:     name,
		interval: interval,
		job:      job,
		backoff:  backoff,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run executes sweep passes until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.done)

	s.logger.Info().Str("worker", s.name).Dur("interval", s.interval).Msg("sweeper started")
	defer s.logger.Info().Str("worker", s.name).Msg("sweeper stopped")

	failures := 0
	for {
		if err := s.job(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			delay := s.backoff.Delay(failures)
			s.logger.Warn().Err(err).
				Str("worker", s.name).
				Int("failures", failures).
				Dur("retry_in", delay).
				Msg("sweep pass failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		failures = 0
		if !sleepCtx(ctx, s.interval) {
			return
		}
	}
}

// Wait blocks until Run has returned.
func (s *Sweeper) Wait() {
	<-s.done
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
