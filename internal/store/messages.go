package store

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// DefaultCapacity is the default number of records kept in history.
const DefaultCapacity = 5000

// Entry is one recipient sighting of a page, as produced by ingestion.
type Entry struct {
	Body          string
	ReceiverLabel string
	Capcode       string
	GroupID       string
	Priority      models.Priority
	Sender        models.Sender
	Timestamp     string // display time
}

// Stats summarises the store contents.
type Stats struct {
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
	Posted   int `json:"posted"`
	Pending  int `json:"pending"`
}

// MessageStore is the bounded, newest-first history of message records.
//
// Records live in a fixed ring; index 0 of every view is the most recently
// inserted record. Duplicate receptions are merged only against that head
// record. Repeats of a page arrive back to back from the decoder, so the
// head comparison catches them in O(1); a duplicate separated by another
// page starts a new record.
//
// All methods are safe for concurrent use. Returned records are copies.
type MessageStore struct {
	mu    sync.Mutex
	ring  []*models.MessageRecord
	head  int // ring index of the newest record
	count int
	byID  map[string]*models.MessageRecord
	now   func() time.Time
}

// NewMessageStore creates a store holding at most capacity records.
// A non-positive capacity selects DefaultCapacity.
func NewMessageStore(capacity int) *MessageStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageStore{
		ring: make([]*models.MessageRecord, capacity),
		byID: make(map[string]*models.MessageRecord, capacity),
		now:  time.Now,
	}
}

// SetClock replaces the clock used to stamp ReceivedAt. Intended for tests.
func (s *MessageStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Upsert merges e into the head record when the bodies are equal and the
// head has not been posted yet; otherwise it inserts a new head, evicting
// the oldest record when the store is full. It returns a copy of the
// affected record.
func (s *MessageStore) Upsert(e Entry) models.MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count > 0 {
		head := s.ring[s.head]
		if head.BodyText == e.Body && !head.Posted {
			head.ReceiverLabels = append(head.ReceiverLabels, e.ReceiverLabel)
			head.Capcodes = append(head.Capcodes, e.Capcode)
			if head.Sender == models.SenderUnknown {
				head.Sender = e.Sender
			}
			return head.Clone()
		}
	}

	rec := &models.MessageRecord{
		ID:               ulid.Make().String(),
		TimestampDisplay: e.Timestamp,
		ReceivedAt:       s.now(),
		GroupID:          e.GroupID,
		BodyText:         e.Body,
		ReceiverLabels:   []string{e.ReceiverLabel},
		Capcodes:         []string{e.Capcode},
		Priority:         e.Priority,
		Sender:           e.Sender,
	}

	capacity := len(s.ring)
	s.head = (s.head - 1 + capacity) % capacity
	if evicted := s.ring[s.head]; evicted != nil {
		delete(s.byID, evicted.ID)
	} else {
		s.count++
	}
	s.ring[s.head] = rec
	s.byID[rec.ID] = rec

	return rec.Clone()
}

// Snapshot returns a copy of every record, newest first.
func (s *MessageStore) Snapshot() []models.MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeLocked(0, s.count)
}

// Page returns up to count records starting at offset (0 = newest).
// Out of range offsets yield an empty slice.
func (s *MessageStore) Page(offset, count int) []models.MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if count <= 0 || offset >= s.count {
		return []models.MessageRecord{}
	}
	if count > s.count-offset {
		count = s.count - offset
	}
	return s.rangeLocked(offset, count)
}

// MarkPosted flags the record as delivered. It returns false when the
// record is no longer in the store.
func (s *MessageStore) MarkPosted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return false
	}
	rec.Posted = true
	return true
}

// Eligible returns the unposted records received at or before cutoff,
// oldest first.
func (s *MessageStore) Eligible(cutoff time.Time) []models.MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.MessageRecord
	for i := s.count - 1; i >= 0; i-- {
		rec := s.at(i)
		if rec.Posted || rec.ReceivedAt.After(cutoff) {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}

// Len returns the number of records held.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap returns the configured capacity.
func (s *MessageStore) Cap() int {
	return len(s.ring)
}

// Stats returns counts of posted and pending records.
func (s *MessageStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Size: s.count, Capacity: len(s.ring)}
	for i := 0; i < s.count; i++ {
		if s.at(i).Posted {
			st.Posted++
		} else {
			st.Pending++
		}
	}
	return st
}

// at returns the record at logical index i (0 = newest). Caller holds mu.
func (s *MessageStore) at(i int) *models.MessageRecord {
	return s.ring[(s.head+i)%len(s.ring)]
}

func (s *MessageStore) rangeLocked(offset, count int) []models.MessageRecord {
	out := make([]models.MessageRecord, 0, count)
	for i := offset; i < offset+count; i++ {
		out = append(out, s.at(i).Clone())
	}
	return out
}
