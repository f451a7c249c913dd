// Package testutil provides a Postgres database for gateway tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tmhi/discord-bot/db"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// dsn returns TEST_PG_DSN, or starts a shared throwaway Postgres container
// when TEST_PG_CONTAINER=1. Empty means no database is available.
func dsn(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("TEST_PG_DSN"); v != "" {
		return v
	}
	if os.Getenv("TEST_PG_CONTAINER") != "1" {
		return ""
	}
	containerOnce.Do(func() {
		ctx := context.Background()
		// the container outlives individual tests; ryuk reaps it when the test binary exits
		c, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("tmhi"),
			tcpostgres.WithUsername("tmhi"),
			tcpostgres.WithPassword("tmhi"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Fatalf("failed to start postgres container: %v", containerErr)
	}
	return containerDSN
}

// SetupTestDB connects to the test database, applies migrations and empties
// every bot table. It skips the test when no database is configured.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d := dsn(t)
	if d == "" {
		t.Skip("TEST_PG_DSN not set (or TEST_PG_CONTAINER=1 for a container)")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, d, db.PoolConfig{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := database.ExecContext(ctx, `TRUNCATE clocks, guildsettings, memberpermissions, rolepermissions,
		permissions, memberroles, roles, members, guilds CASCADE`); err != nil {
		database.Close()
		t.Fatalf("failed to reset tables: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
