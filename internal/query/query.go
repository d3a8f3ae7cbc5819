// Package query serves read-only views of the message history.
package query

import (
	"time"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Stats describes the history and service uptime.
type Stats struct {
	store.Stats
	StartedAt time.Time `json:"startedAt"`
	Uptime    string    `json:"uptime"`
}

// Service answers pull requests from a MessageStore snapshot.
type Service struct {
	store   *store.MessageStore
	started time.Time
}

// NewService creates a query service over s.
func NewService(s *store.MessageStore) *Service {
	return &Service{store: s, started: time.Now()}
}

// Messages returns the full history, newest first.
func (q *Service) Messages() []models.MessageRecord {
	return q.store.Snapshot()
}

// Page returns up to count records starting at offset. A non-positive
// count selects DefaultPageSize; counts above MaxPageSize are clamped.
func (q *Service) Page(offset, count int) []models.MessageRecord {
	if count <= 0 {
		count = DefaultPageSize
	}
	if count > MaxPageSize {
		count = MaxPageSize
	}
	return q.store.Page(offset, count)
}

// Total returns the number of records held.
func (q *Service) Total() int {
	return q.store.Len()
}

// Stats returns store counters and uptime.
func (q *Service) Stats() Stats {
	return Stats{
		Stats:     q.store.Stats(),
		StartedAt: q.started.UTC(),
		Uptime:    time.Since(q.started).Truncate(time.Second).String(),
	}
}
