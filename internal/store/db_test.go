package store

import (
	"database/sql"
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	got := PoolConfig{}.withDefaults()
	if got != DefaultPool {
		t.Fatalf("withDefaults() = %+v, want %+v", got, DefaultPool)
	}

	got = PoolConfig{MaxOpen: 2, MaxIdleTime: time.Minute}.withDefaults()
	if got.MaxOpen != 2 || got.MaxIdle != 2 || got.MaxIdleTime != time.Minute || got.MaxLifetime != DefaultPool.MaxLifetime {
		t.Fatalf("withDefaults() = %+v", got)
	}
}

func TestPoolConfigApply(t *testing.T) {
	// sql.Open does not dial, so no server is needed.
	db, err := sql.Open("pgx", "postgres://canvas@127.0.0.1:1/canvas")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	PoolConfig{MaxOpen: 3}.apply(db)
	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("MaxOpenConnections = %d, want 3", got)
	}
}
