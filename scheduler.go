package behave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// RunScheduler is responsible for scheduling periodic feature runs.
type RunScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func() error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultRunScheduler implements the RunScheduler interface.
type DefaultRunScheduler struct {
	interval time.Duration
	runOnce  bool
	log      zerolog.Logger
	callback func() error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewDefaultRunScheduler creates a new DefaultRunScheduler.
func NewDefaultRunScheduler(interval time.Duration, runOnce bool, log zerolog.Logger) *DefaultRunScheduler {
	return &DefaultRunScheduler{
		interval: interval,
		runOnce:  runOnce,
		log:      log,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback to be called when features should run.
func (s *DefaultRunScheduler) RegisterCallback(callback func() error) {
	s.callback = callback
}

// Start starts the scheduler.
func (s *DefaultRunScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.log.Info().Msg("Starting scheduler in run-once mode")
		return s.callback()
	}

	s.log.Info().Dur("interval", s.interval).Msg("Starting scheduler in continuous mode")

	// Run features immediately on startup
	err := s.callback()
	if err != nil {
		return err
	}

	// Start a goroutine for periodic runs
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Debug().Dur("interval", s.interval).Msg("Starting periodic runner goroutine")

		for {
			select {
			case <-time.After(s.interval):
				// Check if we should still be running
				if !s.running.Load() {
					s.log.Debug().Msg("Service stopped, exiting periodic runner")
					return
				}

				// Run features
				s.log.Info().Msg("Running periodic features")
				if err := s.callback(); err != nil {
					s.log.Error().Err(err).Msg("Error running periodic features")
				}
				s.log.Info().Dur("interval", s.interval).Msg("Run interval")

			case <-s.done:
				s.log.Debug().Msg("Done signal received, stopping periodic runner")
				return

			case <-ctx.Done():
				s.log.Debug().Msg("Context canceled, stopping periodic runner")
				s.running.Store(false)
				return
			}
		}
	}()

	return nil
}

// Stop stops the scheduler.
func (s *DefaultRunScheduler) Stop() error {
	// Check if we're already stopped
	if !s.running.Load() {
		s.log.Debug().Msg("Scheduler already stopped, nothing to do")
		return nil
	}

	// Update running state first to prevent new runs
	s.running.Store(false)

	// Signal goroutines to exit
	s.log.Debug().Msg("Sending done signal to goroutines")
	close(s.done)

	return nil
}

// Stopped returns true if the scheduler is stopped.
func (s *DefaultRunScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (s *DefaultRunScheduler) WaitForShutdown(ctx context.Context) error {
	s.log.Debug().Msg("Waiting for all goroutines to terminate")

	// Create a channel that will be closed when the WaitGroup is done
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	// Wait for either WaitGroup completion or context expiration
	select {
	case <-done:
		s.log.Debug().Msg("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		s.log.Warn().Err(ctx.Err()).Msg("Timed out waiting for goroutines to terminate")
		return ctx.Err()
	}
}
