package store

import (
	"context"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// Archive is a write-only log of delivered records. Both SQLiteArchive and
// PostgresArchive implement it. Archived records are never loaded back into
// the MessageStore.
type Archive interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// SaveRecord stores a delivered record. Saving the same ID twice is a
	// no-op.
	SaveRecord(ctx context.Context, rec models.MessageRecord) error
	CountRecords(ctx context.Context) (int64, error)
}
