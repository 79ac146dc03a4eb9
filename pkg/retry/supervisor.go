package retry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Supervisor runs bounded units of work and keeps one shared exponential backoff state across
// every caller. A failure from any caller grows the delay seen by all of them; a success resets it.
type Supervisor struct {
	mu       sync.Mutex
	policy   *backoff.ExponentialBackOff
	failures int
	pending  time.Duration

	sleep  SleepFunc
	logger zerolog.Logger
}

// NewSupervisor creates a Supervisor whose delays follow base, 2*base, 4*base, ... capped at ceiling.
func NewSupervisor(base, ceiling time.Duration, logger zerolog.Logger) *Supervisor {
	if base <= 0 {
		base = time.Second
	}
	if ceiling < base {
		ceiling = base
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = base
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = ceiling
	policy.MaxElapsedTime = 0 // never give up
	policy.Reset()

	return &Supervisor{
		policy: policy,
		sleep:  contextSleep,
		logger: logger,
	}
}

// SetSleep replaces the wait used between retries.
func (s *Supervisor) SetSleep(fn SleepFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleep = fn
}

// Failures returns the number of consecutive failed attempts.
func (s *Supervisor) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// PendingDelay returns the delay owed before the next attempt, zero after a success.
func (s *Supervisor) PendingDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Attempt runs fn exactly once and records the outcome. Panics are converted to errors.
func (s *Supervisor) Attempt(ctx context.Context, name string, fn func(context.Context) error) error {
	err := safeCall(ctx, fn)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		if s.failures > 0 {
			s.logger.Info().Str("unit", name).Int("failures", s.failures).Msg("Recovered after consecutive failures")
		}
		s.policy.Reset()
		s.failures = 0
		s.pending = 0
		return nil
	}

	s.pending = s.policy.NextBackOff()
	s.failures++
	s.logger.Error().Err(err).
		Str("unit", name).
		Int("failures", s.failures).
		Dur("next_delay", s.pending).
		Msg("Attempt failed, backing off")
	return err
}

// Run waits out any pending delay and calls fn until it succeeds. It only returns early when ctx
// is cancelled, in which case ctx.Err() is returned.
func (s *Supervisor) Run(ctx context.Context, name string, fn func(context.Context) error) error {
	for {
		s.mu.Lock()
		delay, sleep := s.pending, s.sleep
		s.mu.Unlock()

		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Attempt(ctx, name, fn); err == nil {
			return nil
		}
	}
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
