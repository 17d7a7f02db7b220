package memory

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("memory: store closed")

// #region record
// Record is one long-term memory entry.
type Record struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Score     float64        `json:"-"` // query relevance, zero for Latest
}

// #endregion record

// #region store
// Store is the long-term memory collaborator. Query results may contain
// records with identical text; callers deduplicate.
type Store interface {
	Add(ctx context.Context, text string, metadata map[string]any) error
	Query(ctx context.Context, text string, k int) ([]Record, error)
	// Latest returns up to k most recent records, oldest first.
	Latest(ctx context.Context, k int) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// #endregion store

// #region config
// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config selects and configures a memory backend.
type Config struct {
	Backend      string `envconfig:"MEMORY_BACKEND" default:"sqlite"`
	SQLitePath   string `envconfig:"MEMORY_DB" default:"memory.db"`
	RedisURL     string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisKey     string `envconfig:"MEMORY_REDIS_KEY" default:"sun:memories"`
	ReadTimeout  int    `split_words:"true" default:"3"`
	WriteTimeout int    `split_words:"true" default:"3"`
	DialTimeout  int    `split_words:"true" default:"5"`
}

// DefaultConfig returns an on-disk SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendSQLite,
		SQLitePath:   "memory.db",
		RedisURL:     "redis://localhost:6379/0",
		RedisKey:     "sun:memories",
		ReadTimeout:  3,
		WriteTimeout: 3,
		DialTimeout:  5,
	}
}

// #endregion config
