package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs the dispatch tick on a fixed interval. Start fires an
// immediate tick before entering the loop so a fresh deploy drains the
// pending backlog without waiting a full interval.
type Scheduler struct {
	interval time.Duration
	tickFn   func(context.Context)
	logger   zerolog.Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, tickFn func(context.Context), logger zerolog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		interval: interval,
		tickFn:   tickFn,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins ticking. Returns false if already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info().Str("interval", s.interval.String()).Msg("scheduler started")

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for the in-flight tick to finish.
// Returns false if not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.logger.Info().Msg("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("scheduler tick panic recovered")
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	s.logger.Debug().Int64("duration_ms", time.Since(start).Milliseconds()).Msg("scheduler tick completed")
}
