package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/metrics"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// RecentLimit caps the list of recently published records.
const RecentLimit = 500

const (
	recentKey = "p2000:recent"
	recentTTL = 24 * time.Hour
)

// RedisStore publishes delivered records on a Redis channel and keeps a
// capped list of the most recent ones for late subscribers.
type RedisStore struct {
	client  *redis.Client
	channel string
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL, channel string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if channel == "" {
		channel = "p2000:messages"
	}
	return &RedisStore{client: client, channel: channel}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Channel returns the pub/sub channel records are published on.
func (s *RedisStore) Channel() string {
	return s.channel
}

// PublishRecord publishes rec and pushes it onto the recent list.
func (s *RedisStore) PublishRecord(ctx context.Context, rec models.MessageRecord) error {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Publish(ctx, s.channel, data)
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, RecentLimit-1)
	pipe.Expire(ctx, recentKey, recentTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentRecords returns up to limit published records, newest first.
func (s *RedisStore) RecentRecords(ctx context.Context, limit int) ([]models.MessageRecord, error) {
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	results, err := s.client.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]models.MessageRecord, 0, len(results))
	for _, data := range results {
		var rec models.MessageRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
