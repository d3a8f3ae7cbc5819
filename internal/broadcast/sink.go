// Package broadcast pushes settled message records to live consumers.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/metrics"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// ErrNoSinks is returned when a scheduler or MultiSink has nothing to
// deliver to.
var ErrNoSinks = errors.New("broadcast: no sinks configured")

// Sink receives delivered records. Deliver is called at most once per
// record per scan and must honour ctx.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, rec models.MessageRecord) error
}

// PassSink is implemented by sinks that want to know when a scan pass
// begins.
type PassSink interface {
	Sink
	StartPass()
}

// deliveryRetention is how long a record that some sinks accepted keeps
// being retried on the others. After that the remaining sinks are given up
// and the record counts as delivered, so nobody receives it twice.
const deliveryRetention = time.Hour

type partialDelivery struct {
	sinks map[string]struct{}
	first time.Time
	last  time.Time
}

// MultiSink fans a record out to several sinks. When some sinks fail, the
// ones that succeeded are remembered so the retry on the next scan only
// goes to the failed ones. A sink that fails is not tried again for the
// rest of the pass.
type MultiSink struct {
	sinks []Sink
	now   func() time.Time

	mu      sync.Mutex
	partial map[string]*partialDelivery
	failed  map[string]struct{}
}

// NewMultiSink combines sinks. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) (*MultiSink, error) {
	m := &MultiSink{
		now:     time.Now,
		partial: make(map[string]*partialDelivery),
		failed:  make(map[string]struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	if len(m.sinks) == 0 {
		return nil, ErrNoSinks
	}
	return m, nil
}

// Name implements Sink.
func (m *MultiSink) Name() string { return "multi" }

// Sinks returns the names of the combined sinks.
func (m *MultiSink) Sinks() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// StartPass implements PassSink. It clears the sinks that failed during
// the previous pass.
func (m *MultiSink) StartPass() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.failed)
}

// Deliver sends rec to every sink that has not accepted it yet. It returns
// the joined errors of the sinks that failed or were skipped.
func (m *MultiSink) Deliver(ctx context.Context, rec models.MessageRecord) error {
	done, skip, expired := m.begin(rec.ID)
	if expired {
		m.abandon(rec.ID, done)
		return nil
	}

	var errs []error
	for _, s := range m.sinks {
		name := s.Name()
		if _, ok := done[name]; ok {
			continue
		}
		if _, ok := skip[name]; ok {
			errs = append(errs, fmt.Errorf("%s: skipped after a failure in this pass", name))
			continue
		}
		if err := s.Deliver(ctx, rec); err != nil {
			metrics.BroadcastFailures.WithLabelValues(name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			m.markFailed(name)
			continue
		}
		metrics.RecordsBroadcast.WithLabelValues(name).Inc()
		done[name] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	switch {
	case len(errs) == 0:
		delete(m.partial, rec.ID)
	case len(done) > 0:
		if p, ok := m.partial[rec.ID]; ok {
			p.sinks = done
			p.last = now
		} else {
			m.partial[rec.ID] = &partialDelivery{sinks: done, first: now, last: now}
		}
	}
	m.pruneLocked(now)

	return errors.Join(errs...)
}

// begin returns a copy of the sinks that already took record id, the sinks
// that failed in this pass, and whether id has been partial for too long.
func (m *MultiSink) begin(id string) (done, skip map[string]struct{}, expired bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	done = make(map[string]struct{}, len(m.sinks))
	if p, ok := m.partial[id]; ok {
		for name := range p.sinks {
			done[name] = struct{}{}
		}
		expired = m.now().Sub(p.first) >= deliveryRetention
	}
	skip = make(map[string]struct{}, len(m.failed))
	for name := range m.failed {
		skip[name] = struct{}{}
	}
	return done, skip, expired
}

func (m *MultiSink) abandon(id string, done map[string]struct{}) {
	for _, s := range m.sinks {
		if _, ok := done[s.Name()]; !ok {
			metrics.BroadcastAbandoned.WithLabelValues(s.Name()).Inc()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partial, id)
}

func (m *MultiSink) markFailed(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[name] = struct{}{}
}

// pruneLocked forgets records that stopped being retried, which happens
// once the store evicts them.
func (m *MultiSink) pruneLocked(now time.Time) {
	cutoff := now.Add(-deliveryRetention)
	for id, p := range m.partial {
		if p.last.Before(cutoff) {
			delete(m.partial, id)
		}
	}
}
