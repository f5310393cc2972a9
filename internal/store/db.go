package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig sizes the connection pool behind the remote project store.
// Zero fields take the DefaultPool value.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPool fits one workspace process: a few concurrent autosaves and
// listings, the migration coordinator and the search fallback.
var DefaultPool = PoolConfig{
	MaxOpen:     8,
	MaxIdle:     4,
	MaxLifetime: 15 * time.Minute,
	MaxIdleTime: 2 * time.Minute,
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpen <= 0 {
		c.MaxOpen = DefaultPool.MaxOpen
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = DefaultPool.MaxIdle
	}
	if c.MaxIdle > c.MaxOpen {
		c.MaxIdle = c.MaxOpen
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = DefaultPool.MaxLifetime
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = DefaultPool.MaxIdleTime
	}
	return c
}

func (c PoolConfig) apply(db *sql.DB) {
	c = c.withDefaults()
	db.SetMaxOpenConns(c.MaxOpen)
	db.SetMaxIdleConns(c.MaxIdle)
	db.SetConnMaxLifetime(c.MaxLifetime)
	db.SetConnMaxIdleTime(c.MaxIdleTime)
}

// Open connects to the projects database through the pgx driver and fails
// unless the server answers a ping.
func Open(ctx context.Context, databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pool.apply(db)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
