package broadcast

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/ingest"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

func TestDecoderLinesToSinkOnce(t *testing.T) {
	t0 := time.Date(2024, 3, 15, 14, 2, 7, 0, time.UTC)
	s := store.NewMessageStore(100)
	s.SetClock(func() time.Time { return t0 })

	loop := ingest.NewLoop(ingest.Config{Store: s, Logger: zerolog.Nop()})
	input := strings.Join([]string{
		"FLEX: 2018-07-29 11:43:27 1600/2/K/A 10.120 [001523172] ALN A1 Boerhaavelaan HAARLM : 16172",
		"FLEX: 2018-07-29 11:43:27 1600/2/K/A 10.120 [001523173] ALN A1 Boerhaavelaan HAARLM : 16172",
		"",
	}, "\n")
	require.NoError(t, loop.Run(context.Background(), strings.NewReader(input)))

	sink := &fakeSink{}
	sched := NewScheduler(s, sink, time.Second, 15*time.Second, zerolog.Nop())
	sched.now = func() time.Time { return t0.Add(16 * time.Second) }

	sched.Scan(context.Background())
	sched.Scan(context.Background())

	require.Len(t, sink.delivered, 1)
	rec := sink.delivered[0]
	assert.Len(t, rec.ReceiverLabels, 2)
	assert.Equal(t, models.Priority1, rec.Priority)
	assert.True(t, s.Snapshot()[0].Posted)
}
