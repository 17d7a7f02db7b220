package memory

import (
	"context"
	"fmt"
)

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendRedis:
		rdb, err := DialRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb, cfg.RedisKey), nil
	case BackendMemory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}
