package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// #region redis-store
// RedisStore keeps memories as JSON entries in a single Redis list.
type RedisStore struct {
	rdb    *redis.Client
	key    string
	closed atomic.Bool
}

// NewRedisStore wraps an existing client. key names the list.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

// DialRedis connects using the config URL and timeouts, and pings once.
func DialRedis(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = time.Duration(cfg.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(cfg.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(cfg.DialTimeout) * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// #endregion redis-store

// #region redis-ops
func (s *RedisStore) Add(ctx context.Context, text string, metadata map[string]any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	rec := Record{
		ID:        uuid.New().String(),
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("rpush memory: %w", err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, text string, k int) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	all, err := s.rangeRecords(ctx, 0, -1)
	if err != nil {
		return nil, err
	}
	return rank(all, text, k), nil
}

func (s *RedisStore) Latest(ctx context.Context, k int) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if k <= 0 {
		return nil, nil
	}
	return s.rangeRecords(ctx, int64(-k), -1)
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n, err := s.rdb.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen memories: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) rangeRecords(ctx context.Context, start, stop int64) ([]Record, error) {
	raw, err := s.rdb.LRange(ctx, s.key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange memories: %w", err)
	}
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal memory: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// #endregion redis-ops
