package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository"
)

// Repository implements EventRepository for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema initializes the ClickHouse schema with ReplacingMergeTree engine
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		event_id String,
		identity_id String,
		session_id String,
		event_type LowCardinality(String),
		stage_rank UInt8,
		payload String,
		occurred_at Int64,
		received_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (event_id)
	ORDER BY (event_id, occurred_at)
	PARTITION BY toYYYYMM(toDateTime(occurred_at))
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertBatch appends a batch of events to the history
func (r *Repository) InsertBatch(ctx context.Context, events []*domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO events")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedCount := 0
	for _, event := range events {
		if event.Version == 0 {
			event.Version = uint64(time.Now().UnixNano())
		}

		payload := event.Payload
		if payload == "" {
			payload = "{}"
		}

		err := batch.Append(
			event.EventID,
			event.IdentityID,
			event.SessionID,
			string(event.Type),
			event.StageRank,
			payload,
			event.OccurredAt,
			event.ReceivedAt,
			event.Version,
		)

		if err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
		insertedCount++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return insertedCount, nil
}

// EventsForIdentity returns one identity's events in occurred_at order
func (r *Repository) EventsForIdentity(ctx context.Context, identityID string, from, to int64) ([]*domain.Event, error) {
	query := `
		SELECT event_id, identity_id, session_id, event_type, stage_rank,
		       payload, occurred_at, received_at, version
		FROM events FINAL
		WHERE identity_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at ASC
	`

	rows, err := r.client.Conn().Query(ctx, query, identityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query identity events: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close identity event rows", zap.Error(err))
		}
	}(rows)

	var events []*domain.Event
	for rows.Next() {
		var (
			e         domain.Event
			eventType string
		)
		if err := rows.Scan(&e.EventID, &e.IdentityID, &e.SessionID, &eventType,
			&e.StageRank, &e.Payload, &e.OccurredAt, &e.ReceivedAt, &e.Version); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Type = domain.EventType(eventType)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

// StageReach counts distinct identities by their deepest stage rank within
// the window. The cumulative funnel is derived from these buckets by the
// journey analyzer, which keeps the counts monotonic by construction.
func (r *Repository) StageReach(ctx context.Context, from, to int64) (repository.StageReachResult, error) {
	query := `
		SELECT max_stage, count() AS identities
		FROM (
			SELECT identity_id, max(stage_rank) AS max_stage
			FROM events FINAL
			WHERE occurred_at >= ? AND occurred_at <= ?
			GROUP BY identity_id
		)
		GROUP BY max_stage
	`

	rows, err := r.client.Conn().Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage reach: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close stage reach rows", zap.Error(err))
		}
	}(rows)

	result := repository.StageReachResult{}
	for rows.Next() {
		var (
			rank  uint8
			count uint64
		)
		if err := rows.Scan(&rank, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stage reach row: %w", err)
		}
		result[rank] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage reach rows: %w", err)
	}

	return result, nil
}

// ScrubIdentity blanks payloads and session ids for one identity. The rows
// themselves stay so funnel aggregates remain consistent.
func (r *Repository) ScrubIdentity(ctx context.Context, identityID string) error {
	query := `
		ALTER TABLE events
		UPDATE payload = '{}', session_id = ''
		WHERE identity_id = ?
	`

	if err := r.client.Conn().Exec(ctx, query, identityID); err != nil {
		return fmt.Errorf("failed to scrub identity events: %w", err)
	}

	r.log.Info("Scrubbed event history", zap.String("identity_id", identityID))
	return nil
}

// DeleteOlderThan removes events past the default retention window.
func (r *Repository) DeleteOlderThan(ctx context.Context, before int64) error {
	query := `ALTER TABLE events DELETE WHERE occurred_at < ?`

	if err := r.client.Conn().Exec(ctx, query, before); err != nil {
		return fmt.Errorf("failed to delete expired events: %w", err)
	}

	return nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}
