package broadcast

import (
	"context"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

// Publisher is implemented by store.RedisStore.
type Publisher interface {
	PublishRecord(ctx context.Context, rec models.MessageRecord) error
}

// RedisSink publishes records on a Redis channel.
type RedisSink struct {
	pub Publisher
}

// NewRedisSink wraps pub.
func NewRedisSink(pub Publisher) *RedisSink {
	return &RedisSink{pub: pub}
}

// Name implements Sink.
func (r *RedisSink) Name() string { return "redis" }

// Deliver implements Sink.
func (r *RedisSink) Deliver(ctx context.Context, rec models.MessageRecord) error {
	return r.pub.PublishRecord(ctx, rec)
}

// ArchiveSink appends delivered records to a SQL archive.
type ArchiveSink struct {
	archive store.Archive
	name    string
}

// NewArchiveSink wraps archive; name distinguishes backends in metrics.
func NewArchiveSink(name string, archive store.Archive) *ArchiveSink {
	return &ArchiveSink{archive: archive, name: name}
}

// Name implements Sink.
func (a *ArchiveSink) Name() string { return a.name }

// Deliver implements Sink.
func (a *ArchiveSink) Deliver(ctx context.Context, rec models.MessageRecord) error {
	return a.archive.SaveRecord(ctx, rec)
}
