package store

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

func entry(body, capcode string) Entry {
	return Entry{
		Body:          body,
		ReceiverLabel: capcode,
		Capcode:       capcode,
		GroupID:       "10.120",
		Timestamp:     "2020-01-01 12:00:00",
	}
}

func TestUpsertMergesDuplicateHead(t *testing.T) {
	s := NewMessageStore(10)

	first := s.Upsert(entry("A1 Teststreet 1", "001523172"))
	second := s.Upsert(entry("A1 Teststreet 1", "001523173"))

	assert.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, s.Len())

	rec := s.Snapshot()[0]
	assert.Equal(t, []string{"001523172", "001523173"}, rec.ReceiverLabels)
	assert.Equal(t, []string{"001523172", "001523173"}, rec.Capcodes)
}

func TestUpsertNewBodyFreezesPreviousHead(t *testing.T) {
	s := NewMessageStore(10)

	s.Upsert(entry("one", "1"))
	s.Upsert(entry("one", "2"))
	s.Upsert(entry("two", "3"))
	// Same body as the frozen record: head is "two", so a new record starts.
	s.Upsert(entry("one", "4"))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "one", snap[0].BodyText)
	assert.Equal(t, []string{"4"}, snap[0].Capcodes)
	assert.Equal(t, "two", snap[1].BodyText)
	assert.Equal(t, "one", snap[2].BodyText)
	assert.Equal(t, []string{"1", "2"}, snap[2].Capcodes)
}

func TestUpsertClassificationFields(t *testing.T) {
	s := NewMessageStore(10)

	e := entry("body", "1")
	e.Priority = models.Priority2
	e.Sender = models.SenderUnknown
	s.Upsert(e)

	e = entry("body", "2")
	e.Priority = models.Priority1
	e.Sender = models.SenderAmbulance
	s.Upsert(e)

	e = entry("body", "3")
	e.Sender = models.SenderPolice
	s.Upsert(e)

	rec := s.Snapshot()[0]
	assert.Equal(t, models.Priority2, rec.Priority, "priority is kept from the first sighting")
	assert.Equal(t, models.SenderAmbulance, rec.Sender, "sender is only replaced while unknown")
}

func TestUpsertDoesNotMergeIntoPostedHead(t *testing.T) {
	s := NewMessageStore(10)

	rec := s.Upsert(entry("body", "1"))
	require.True(t, s.MarkPosted(rec.ID))
	s.Upsert(entry("body", "2"))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, []string{"2"}, snap[0].Capcodes)
	assert.False(t, snap[0].Posted)
	assert.Equal(t, []string{"1"}, snap[1].Capcodes)
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := NewMessageStore(3)

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, s.Upsert(entry(fmt.Sprintf("body %d", i), "1")).ID)
	}

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "body 3", snap[0].BodyText)
	assert.Equal(t, "body 1", snap[2].BodyText)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.Cap())

	assert.False(t, s.MarkPosted(ids[0]), "evicted record cannot be marked")
	assert.True(t, s.MarkPosted(ids[1]))
}

func TestCapacityNeverExceeded(t *testing.T) {
	s := NewMessageStore(50)
	for i := 0; i < 500; i++ {
		s.Upsert(entry(fmt.Sprintf("body %d", i), "1"))
		require.LessOrEqual(t, s.Len(), 50)
	}
	snap := s.Snapshot()
	assert.Equal(t, "body 499", snap[0].BodyText)
	assert.Equal(t, "body 450", snap[49].BodyText)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewMessageStore(0).Cap())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewMessageStore(10)
	s.Upsert(entry("body", "1"))

	snap := s.Snapshot()
	snap[0].Capcodes[0] = "mutated"
	snap[0].BodyText = "mutated"
	s.Upsert(entry("body", "2"))

	fresh := s.Snapshot()[0]
	assert.Equal(t, "body", fresh.BodyText)
	assert.Equal(t, []string{"1", "2"}, fresh.Capcodes)
	assert.Len(t, snap[0].Capcodes, 1)
}

func TestPage(t *testing.T) {
	s := NewMessageStore(10)
	for i := 0; i < 5; i++ {
		s.Upsert(entry(fmt.Sprintf("body %d", i), "1"))
	}

	page := s.Page(1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, "body 3", page[0].BodyText)
	assert.Equal(t, "body 2", page[1].BodyText)

	assert.Len(t, s.Page(3, 10), 2)
	assert.Empty(t, s.Page(5, 1))
	assert.Empty(t, s.Page(100, 1))
	assert.Empty(t, s.Page(0, 0))
	assert.NotNil(t, s.Page(100, 1))
	assert.Len(t, s.Page(-1, 1), 1)
}

func TestPageHugeCount(t *testing.T) {
	s := NewMessageStore(10)
	s.Upsert(entry("first", "1"))
	s.Upsert(entry("second", "1"))

	require.NotPanics(t, func() {
		page := s.Page(1, math.MaxInt)
		require.Len(t, page, 1)
		assert.Equal(t, "first", page[0].BodyText)
	})
	assert.Len(t, s.Page(0, math.MaxInt), 2)
	assert.Empty(t, s.Page(math.MaxInt, math.MaxInt))
}

func TestEligible(t *testing.T) {
	s := NewMessageStore(10)
	base := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	a := s.Upsert(entry("a", "1"))
	now = base.Add(5 * time.Second)
	b := s.Upsert(entry("b", "1"))
	now = base.Add(10 * time.Second)
	s.Upsert(entry("c", "1"))

	got := s.Eligible(base.Add(5 * time.Second))
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID, "oldest first")
	assert.Equal(t, b.ID, got[1].ID)

	s.MarkPosted(a.ID)
	got = s.Eligible(base.Add(5 * time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	st := s.Stats()
	assert.Equal(t, Stats{Size: 3, Capacity: 10, Posted: 1, Pending: 2}, st)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewMessageStore(100)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Upsert(entry(fmt.Sprintf("body %d", i/3), fmt.Sprint(i)))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				for _, rec := range s.Snapshot() {
					if len(rec.ReceiverLabels) != len(rec.Capcodes) || len(rec.Capcodes) == 0 {
						t.Errorf("inconsistent record %+v", rec)
						return
					}
					s.MarkPosted(rec.ID)
				}
				s.Page(i%100, 10)
			}
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 100)
}
