package monitor

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/todo/internal/infrastructure/boltdb"
)

func PostgresCheck(pool *pgxpool.Pool) Check {
	return Check{
		Name:    "postgresql",
		Timeout: 3 * time.Second,
		Probe: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
}

func RedisCheck(client redislib.UniversalClient) Check {
	return Check{
		Name:    "redis",
		Timeout: 2 * time.Second,
		Probe: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

func BoltCheck(store *boltdb.Store) Check {
	return Check{
		Name: "boltdb",
		Probe: func(context.Context) error {
			return store.Ping()
		},
	}
}
