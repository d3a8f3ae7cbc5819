package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/metrics"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// SQLiteArchive archives delivered records in a local SQLite file.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (and creates) the archive database.
// If dbPath is empty, defaults to "./data/p2000.db"
func NewSQLiteArchive(ctx context.Context, dbPath string) (*SQLiteArchive, error) {
	if dbPath == "" {
		dbPath = "./data/p2000.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	archive := &SQLiteArchive{db: db}
	if err := archive.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return archive, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteArchive) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		timestamp_display TEXT NOT NULL,
		received_at DATETIME NOT NULL,
		group_id TEXT DEFAULT '',
		body TEXT NOT NULL,
		receivers TEXT NOT NULL,
		capcodes TEXT NOT NULL,
		priority INTEGER DEFAULT 0,
		sender TEXT NOT NULL,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_received_at ON records(received_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteArchive) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteArchive) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRecord inserts a delivered record.
func (s *SQLiteArchive) SaveRecord(ctx context.Context, rec models.MessageRecord) error {
	start := time.Now()
	defer func() { metrics.ArchiveLatency.WithLabelValues("sqlite").Observe(time.Since(start).Seconds()) }()

	receivers, err := json.Marshal(rec.ReceiverLabels)
	if err != nil {
		return err
	}
	capcodes, err := json.Marshal(rec.Capcodes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO records (id, timestamp_display, received_at, group_id, body, receivers, capcodes, priority, sender)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.TimestampDisplay, rec.ReceivedAt.UTC(), rec.GroupID, rec.BodyText,
		string(receivers), string(capcodes), int(rec.Priority), rec.Sender.String())
	return err
}

// CountRecords returns the number of archived records.
func (s *SQLiteArchive) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count)
	return count, err
}
