package broadcast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

type fakeSink struct {
	name string

	mu        sync.Mutex
	fail      error
	delivered []models.MessageRecord
	calls     int
}

func (f *fakeSink) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeSink) Deliver(_ context.Context, rec models.MessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.delivered = append(f.delivered, rec)
	return nil
}

func (f *fakeSink) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func page(body, capcode string) store.Entry {
	return store.Entry{Body: body, ReceiverLabel: capcode, Capcode: capcode, Timestamp: "2024-03-15 14:02:07"}
}

func setup(t *testing.T, sink Sink) (*Scheduler, *store.MessageStore, time.Time) {
	t.Helper()
	t0 := time.Date(2024, 3, 15, 14, 2, 7, 0, time.UTC)
	s := store.NewMessageStore(10)
	s.SetClock(func() time.Time { return t0 })
	sched := NewScheduler(s, sink, time.Second, 15*time.Second, zerolog.Nop())
	return sched, s, t0
}

func TestScanWaitsForSettleDelay(t *testing.T) {
	sink := &fakeSink{}
	sched, s, t0 := setup(t, sink)
	ctx := context.Background()

	s.Upsert(page("A1 Dorpsstraat", "001523172"))

	sched.now = func() time.Time { return t0.Add(14 * time.Second) }
	assert.Equal(t, 0, sched.Scan(ctx))
	assert.False(t, s.Snapshot()[0].Posted)

	// More receivers arrive while the record settles.
	s.Upsert(page("A1 Dorpsstraat", "001523173"))

	sched.now = func() time.Time { return t0.Add(15 * time.Second) }
	assert.Equal(t, 1, sched.Scan(ctx))
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, []string{"001523172", "001523173"}, sink.delivered[0].Capcodes)
	assert.True(t, s.Snapshot()[0].Posted)
}

func TestScanDeliversExactlyOnce(t *testing.T) {
	sink := &fakeSink{}
	sched, s, t0 := setup(t, sink)
	ctx := context.Background()

	s.Upsert(page("first", "1"))
	s.Upsert(page("second", "2"))
	sched.now = func() time.Time { return t0.Add(time.Minute) }

	assert.Equal(t, 2, sched.Scan(ctx))
	assert.Equal(t, 0, sched.Scan(ctx))
	assert.Equal(t, 0, sched.Scan(ctx))

	require.Len(t, sink.delivered, 2)
	// Oldest first.
	assert.Equal(t, "first", sink.delivered[0].BodyText)
	assert.Equal(t, "second", sink.delivered[1].BodyText)
}

func TestScanFailureLeavesRecordForNextScan(t *testing.T) {
	sink := &fakeSink{fail: errors.New("unreachable")}
	sched, s, t0 := setup(t, sink)
	ctx := context.Background()

	s.Upsert(page("A2 Kerkstraat", "1"))
	sched.now = func() time.Time { return t0.Add(time.Minute) }

	assert.Equal(t, 0, sched.Scan(ctx))
	assert.Equal(t, 1, sink.calls, "one attempt per scan")
	assert.False(t, s.Snapshot()[0].Posted)

	sink.setFail(nil)
	assert.Equal(t, 1, sched.Scan(ctx))
	assert.True(t, s.Snapshot()[0].Posted)
	assert.Equal(t, 2, sink.calls)
}

func TestScanToleratesEviction(t *testing.T) {
	evicting := &evictingSink{}
	sched, s, t0 := setup(t, evicting)
	evicting.store = s

	s.Upsert(page("old", "1"))
	sched.now = func() time.Time { return t0.Add(time.Minute) }

	assert.Equal(t, 1, sched.Scan(context.Background()))
	for _, rec := range s.Snapshot() {
		assert.NotEqual(t, "old", rec.BodyText)
	}
}

// evictingSink fills the store during delivery so the delivered record is
// gone by the time it is marked posted.
type evictingSink struct {
	store *store.MessageStore
}

func (e *evictingSink) Name() string { return "evicting" }

func (e *evictingSink) Deliver(_ context.Context, _ models.MessageRecord) error {
	for i := 0; i < e.store.Cap(); i++ {
		e.store.Upsert(page(string(rune('a'+i)), "2"))
	}
	return nil
}

func TestRunRequiresSink(t *testing.T) {
	sched := NewScheduler(store.NewMessageStore(1), nil, 0, 0, zerolog.Nop())
	assert.ErrorIs(t, sched.Run(context.Background()), ErrNoSinks)
}

func TestRunDeliversUntilCancelled(t *testing.T) {
	sink := &fakeSink{}
	s := store.NewMessageStore(10)
	sched := NewScheduler(s, sink, 10*time.Millisecond, time.Nanosecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	s.Upsert(page("P 1 Brand", "1"))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, sink.count())
}

func TestScanNeverRepeatsAcceptedDeliveries(t *testing.T) {
	ws := &fakeSink{name: "websocket"}
	webhook := &fakeSink{name: "webhook", fail: errors.New("HTTP 502")}
	multi, err := NewMultiSink(ws, webhook)
	require.NoError(t, err)

	sched, s, t0 := setup(t, multi)
	s.Upsert(page("A1 Dorpsstraat", "001523172"))

	now := t0.Add(15 * time.Second)
	clock := func() time.Time { return now }
	sched.now = clock
	multi.now = clock

	for i := 0; i < 3700; i++ {
		sched.Scan(context.Background())
		now = now.Add(time.Second)
	}

	assert.Equal(t, 1, ws.count(), "websocket deliveries of one record")
	assert.True(t, s.Snapshot()[0].Posted)
	assert.Empty(t, multi.partial)
}

func TestScanPostsDeadWebhookOncePerPass(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ws := &fakeSink{name: "websocket"}
	multi, err := NewMultiSink(ws, NewWebhookSink(srv.URL, 0))
	require.NoError(t, err)

	sched, s, t0 := setup(t, multi)
	for _, body := range []string{"one", "two", "three", "four", "five"} {
		s.Upsert(page(body, "1"))
	}
	sched.now = func() time.Time { return t0.Add(time.Minute) }

	start := time.Now()
	assert.Equal(t, 0, sched.Scan(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), posts.Load())
	assert.Equal(t, 5, ws.count(), "other sinks are not held up")

	sched.Scan(context.Background())
	assert.Equal(t, int32(2), posts.Load())
	assert.Equal(t, 5, ws.count())
}
