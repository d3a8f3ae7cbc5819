package broadcast

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

const (
	DefaultPeriod      = time.Second
	DefaultSettleDelay = 15 * time.Second
)

// Scheduler periodically delivers records that have stopped aggregating
// receivers and marks them posted.
type Scheduler struct {
	store  *store.MessageStore
	sink   Sink
	period time.Duration
	settle time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler. Zero durations select the defaults.
func NewScheduler(s *store.MessageStore, sink Sink, period, settle time.Duration, logger zerolog.Logger) *Scheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Scheduler{
		store:  s,
		sink:   sink,
		period: period,
		settle: settle,
		logger: logger.With().Str("component", "broadcast").Logger(),
		now:    time.Now,
	}
}

// Run scans every period until ctx is cancelled. It returns ErrNoSinks
// without a sink and nil after cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.sink == nil {
		return ErrNoSinks
	}

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info().
		Dur("period", s.period).
		Dur("settle", s.settle).
		Str("sink", s.sink.Name()).
		Msg("broadcast scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("broadcast scheduler stopped")
			return nil
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan makes at most one delivery attempt for every unposted record older
// than the settle delay and returns how many were delivered. The store lock
// is not held while the sink runs.
func (s *Scheduler) Scan(ctx context.Context) int {
	if ps, ok := s.sink.(PassSink); ok {
		ps.StartPass()
	}
	eligible := s.store.Eligible(s.now().Add(-s.settle))

	delivered := 0
	for _, rec := range eligible {
		if ctx.Err() != nil {
			return delivered
		}
		if err := s.sink.Deliver(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Str("id", rec.ID).Msg("delivery failed, retrying next scan")
			continue
		}
		if !s.store.MarkPosted(rec.ID) {
			s.logger.Debug().Str("id", rec.ID).Msg("record evicted before it was marked posted")
		}
		delivered++
	}
	return delivered
}
