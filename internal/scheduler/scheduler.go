package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval with the tick time.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Name         string
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives one named periodic cycle. Ticks run to completion: a
// tick that arrives while the previous run is still executing is skipped,
// never queued.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Str("cycle", opts.Name).Logger(),
	}
}

// Run blocks, invoking the tick function every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := time.Now().UTC().Add(s.opts.Interval)
	for {
		delay := time.Until(next)
		if delay < 0 {
			s.logger.Warn().Time("missed", next).Msg("tick overran interval; skipping missed runs")
			next = time.Now().UTC().Add(s.opts.Interval)
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		started := time.Now().UTC()
		s.logger.Info().Time("tick", started).Msg("executing scheduled tick")

		if err := tick(ctx, started); err != nil {
			s.logger.Error().Err(err).Time("tick", started).Msg("tick execution failed")
		}
		s.logger.Info().Dur("duration", time.Since(started)).Msg("tick finished")

		next = next.Add(s.opts.Interval)
	}
}
