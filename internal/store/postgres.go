package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/metrics"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// PostgresArchive archives delivered records in PostgreSQL.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a new PostgreSQL archive with a connection pool
// and makes sure the records table exists.
func NewPostgresArchive(ctx context.Context, databaseURL string) (*PostgresArchive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			timestamp_display TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			group_id TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			receivers TEXT[] NOT NULL,
			capcodes TEXT[] NOT NULL,
			priority SMALLINT NOT NULL DEFAULT 0,
			sender TEXT NOT NULL,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresArchive{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresArchive) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresArchive) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveRecord inserts a delivered record.
func (s *PostgresArchive) SaveRecord(ctx context.Context, rec models.MessageRecord) error {
	start := time.Now()
	defer func() { metrics.ArchiveLatency.WithLabelValues("postgres").Observe(time.Since(start).Seconds()) }()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO records (id, timestamp_display, received_at, group_id, body, receivers, capcodes, priority, sender)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.TimestampDisplay, rec.ReceivedAt, rec.GroupID, rec.BodyText,
		rec.ReceiverLabels, rec.Capcodes, int16(rec.Priority), rec.Sender.String())
	return err
}

// CountRecords returns the number of archived records.
func (s *PostgresArchive) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM records").Scan(&count)
	return count, err
}
