// Package ingest turns the decoder's line stream into message records.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/classify"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/metrics"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/parser"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

// TimestampLayout formats locally generated timestamps for POCSAG frames,
// matching the layout multimon-ng prints for FLEX.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrAlreadyRunning is returned by Run when the loop is already consuming a
// stream.
var ErrAlreadyRunning = errors.New("ingest: loop already running")

// State is the lifecycle state of a Loop.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Notifier is told that the store changed. Notify must not block.
type Notifier interface {
	Notify()
}

// Config holds the collaborators of a Loop. Store is required.
type Config struct {
	Store     *store.MessageStore
	Filter    *classify.CapcodeFilter
	Senders   classify.SenderClassifier
	Directory classify.Directory
	Notifier  Notifier
	Logger    zerolog.Logger
}

// Loop reads decoder lines and upserts the resulting records.
type Loop struct {
	store     *store.MessageStore
	filter    *classify.CapcodeFilter
	senders   classify.SenderClassifier
	directory classify.Directory
	notifier  Notifier
	logger    zerolog.Logger
	now       func() time.Time

	state   atomic.Int32
	running atomic.Bool
}

// NewLoop creates an ingestion loop.
func NewLoop(cfg Config) *Loop {
	l := &Loop{
		store:     cfg.Store,
		filter:    cfg.Filter,
		senders:   cfg.Senders,
		directory: cfg.Directory,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger.With().Str("component", "ingest").Logger(),
		now:       time.Now,
	}
	l.state.Store(int32(StateStarting))
	return l
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.logger.Debug().Stringer("state", s).Msg("ingest state")
}

// Run consumes r until end of stream or until ctx is cancelled. The line
// being handled when ctx is cancelled is completed first.
//
// End of stream returns nil (or the read error) and leaves the loop
// Stopped; restarting the decoder is the caller's decision. Cancellation
// returns ctx.Err().
func (l *Loop) Run(ctx context.Context, r io.Reader) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	l.setState(StateStarting)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go readLines(ctx, r, lines, readErr)

	l.setState(StateRunning)
	for {
		select {
		case <-ctx.Done():
			l.setState(StateStopping)
			l.setState(StateStopped)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				l.setState(StateStopped)
				err := <-readErr
				if err != nil {
					l.logger.Error().Err(err).Msg("decoder stream failed")
				} else {
					l.logger.Info().Msg("decoder stream ended")
				}
				return err
			}
			l.HandleLine(line)
		}
	}
}

// readLines feeds lines to out until EOF, a read error or cancellation. A
// read blocked in r outlives cancellation until the producer closes r.
func readLines(ctx context.Context, r io.Reader, out chan<- string, errc chan<- error) {
	defer close(out)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			select {
			case out <- line:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			errc <- err
			return
		}
	}
}

// HandleLine runs one raw decoder line through parse, filter, classify and
// upsert, and returns the records it touched. A panic is logged and the
// line is dropped.
func (l *Loop) HandleLine(line string) (records []models.MessageRecord) {
	defer func() {
		if r := recover(); r != nil {
			metrics.FramesDropped.WithLabelValues("panic").Inc()
			l.logger.Error().Interface("panic", r).Str("line", line).Msg("line handling panicked")
			records = nil
		}
	}()

	metrics.LinesRead.Inc()

	frame, ok := parser.Parse(line)
	if !ok {
		metrics.FramesDropped.WithLabelValues("unparsed").Inc()
		return nil
	}
	metrics.FramesParsed.WithLabelValues(frame.Format.String()).Inc()
	l.logger.Debug().Str("line", parser.Sanitize(line)).Msg("frame")

	priority := classify.Priority(frame.Body)
	timestamp := frame.RawTimestamp
	if timestamp == "" {
		timestamp = l.now().Format(TimestampLayout)
	}

	for _, capcode := range frame.Recipients() {
		if !l.filter.Allow(capcode) {
			metrics.FramesDropped.WithLabelValues("filtered").Inc()
			continue
		}

		rec := l.store.Upsert(store.Entry{
			Body:          frame.Body,
			ReceiverLabel: l.directory.Label(capcode),
			Capcode:       capcode,
			GroupID:       frame.GroupID,
			Priority:      priority,
			Sender:        l.senders.Classify(frame.Format, capcode),
			Timestamp:     timestamp,
		})
		if len(rec.Capcodes) == 1 {
			metrics.RecordsCreated.Inc()
		} else {
			metrics.RecordsMerged.Inc()
		}
		records = append(records, rec)
	}

	if len(records) > 0 {
		metrics.StoreSize.Set(float64(l.store.Len()))
		if l.notifier != nil {
			l.notifier.Notify()
		}
	}
	return records
}
