package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	rd "github.com/redis/go-redis/v9"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// ConnectRedis opens the profile-store connection and pings it once so a
// bad address fails at startup, not at first credit.
func ConnectRedis(ctx context.Context, addr, password string, database int) (*rd.Client, error) {
	client := rd.NewClient(&rd.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
