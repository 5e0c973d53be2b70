package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/hazardscope/hazardscope/pkg/config"
)

// Pool limits for the Postgres connection.
const (
	maxOpenConns = 20
	maxIdleConns = 10
)

// OpenPostgres connects to url, verifies the connection and, when migrate
// is set, applies pending migrations.
func OpenPostgres(ctx context.Context, url string, migrate bool) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if migrate {
		if err := AutoMigrate(db.DB); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// OpenRedis returns a client for cfg, or nil when no address is configured.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}
