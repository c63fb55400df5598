//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the tables the Postgres stores read and write. created_at
// is assigned once on insert so listing in insertion order works.
const schema = `
CREATE TABLE IF NOT EXISTS transfer_restrictions (
	token                 TEXT        NOT NULL,
	subject               TEXT        NOT NULL,
	max_transfer_amount   NUMERIC     NOT NULL DEFAULT 0,
	daily_volume_limit    NUMERIC     NOT NULL DEFAULT 0,
	monthly_volume_limit  NUMERIC     NOT NULL DEFAULT 0,
	daily_count_limit     BIGINT      NOT NULL DEFAULT 0,
	monthly_count_limit   BIGINT      NOT NULL DEFAULT 0,
	transfer_lock_seconds BIGINT      NOT NULL DEFAULT 0,
	last_transfer_time    TIMESTAMPTZ,
	daily_volume_used     NUMERIC     NOT NULL DEFAULT 0,
	monthly_volume_used   NUMERIC     NOT NULL DEFAULT 0,
	daily_count_used      BIGINT      NOT NULL DEFAULT 0,
	monthly_count_used    BIGINT      NOT NULL DEFAULT 0,
	last_daily_reset      TIMESTAMPTZ NOT NULL,
	last_monthly_reset    TIMESTAMPTZ NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (token, subject)
);

CREATE TABLE IF NOT EXISTS compliance_modules (
	token       TEXT        NOT NULL,
	module_type TEXT        NOT NULL,
	enabled     BOOLEAN     NOT NULL DEFAULT TRUE,
	priority    INTEGER     NOT NULL DEFAULT 0,
	config      JSONB       NOT NULL DEFAULT '{}',
	version     BIGINT      NOT NULL DEFAULT 1,
	updated_at  TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (token, module_type)
);

CREATE TABLE IF NOT EXISTS country_restrictions (
	country             TEXT        NOT NULL PRIMARY KEY,
	is_blocked          BOOLEAN     NOT NULL DEFAULT FALSE,
	is_whitelisted      BOOLEAN     NOT NULL DEFAULT FALSE,
	max_transfer_amount NUMERIC     NOT NULL DEFAULT 0,
	daily_limit         NUMERIC     NOT NULL DEFAULT 0,
	monthly_limit       NUMERIC     NOT NULL DEFAULT 0,
	requires_approval   BOOLEAN     NOT NULL DEFAULT FALSE,
	reason              TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bilateral_restrictions (
	source              TEXT        NOT NULL,
	destination         TEXT        NOT NULL,
	is_blocked          BOOLEAN     NOT NULL DEFAULT FALSE,
	max_transfer_amount NUMERIC     NOT NULL DEFAULT 0,
	requires_approval   BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, destination)
);
`

// PostgresContainer wraps a testcontainers Postgres instance with an open
// connection pool and the service schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tokengate_test"),
		tcpostgres.WithUsername("tokengate"),
		tcpostgres.WithPassword("tokengate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}

	// Note: We don't register t.Cleanup here because the container is managed
	// by the singleton Manager and shared across test suites. Ryuk handles cleanup.

	return pc
}

// TruncateTables clears the given tables. Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
