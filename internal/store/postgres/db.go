package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Open connects to Postgres via the pgx stdlib driver.
func Open(dsn string, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Info("Postgres connection established")
	return db, nil
}

// InitSchema creates the durable record tables if they don't exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS consent_records (
	identity_id     TEXT PRIMARY KEY,
	necessary       BOOLEAN NOT NULL DEFAULT FALSE,
	analytics       BOOLEAN NOT NULL DEFAULT FALSE,
	marketing       BOOLEAN NOT NULL DEFAULT FALSE,
	personalization BOOLEAN NOT NULL DEFAULT FALSE,
	version         INT NOT NULL DEFAULT 1,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	revoked         BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS consent_keys (
	signal_key  TEXT PRIMARY KEY,
	identity_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS anonymization_queue (
	identity_id TEXT PRIMARY KEY,
	due_at      TIMESTAMPTZ NOT NULL,
	done        BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS identities (
	identity_id   TEXT PRIMARY KEY,
	fingerprint   TEXT,
	fallback_ids  JSONB NOT NULL DEFAULT '[]',
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL,
	merge_history JSONB NOT NULL DEFAULT '[]',
	anonymized    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS identities_fingerprint_idx ON identities (fingerprint);
CREATE INDEX IF NOT EXISTS identities_fallback_ids_idx ON identities USING GIN (fallback_ids);

CREATE TABLE IF NOT EXISTS trigger_jobs (
	job_id          TEXT PRIMARY KEY,
	trigger_name    TEXT NOT NULL,
	identity_id     TEXT NOT NULL,
	action          TEXT NOT NULL,
	personalization JSONB NOT NULL DEFAULT '{}',
	scheduled_for   TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL,
	failure_reason  TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS trigger_jobs_status_idx ON trigger_jobs (status);

CREATE TABLE IF NOT EXISTS dead_letters (
	id          BIGSERIAL PRIMARY KEY,
	source      TEXT NOT NULL,
	reference   TEXT NOT NULL,
	payload     TEXT NOT NULL,
	reason      TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create postgres schema: %w", err)
	}
	return nil
}
