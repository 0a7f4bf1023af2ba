package repository

import (
	"context"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// StageReachResult maps a funnel stage rank to the number of distinct
// identities whose deepest stage within the window was that rank.
type StageReachResult map[uint8]uint64

// EventRepository defines the interface for append-only event history.
type EventRepository interface {
	// InsertBatch appends a batch of events to the history
	InsertBatch(ctx context.Context, events []*domain.Event) (int, error)

	// EventsForIdentity returns one identity's events within [from, to],
	// ordered by occurred_at ascending
	EventsForIdentity(ctx context.Context, identityID string, from, to int64) ([]*domain.Event, error)

	// StageReach returns, per stage rank, how many distinct identities had
	// that rank as their deepest stage within [from, to]
	StageReach(ctx context.Context, from, to int64) (StageReachResult, error)

	// ScrubIdentity blanks payloads and pseudonymizes session ids for one
	// identity's history (data-subject deletion / consent revocation)
	ScrubIdentity(ctx context.Context, identityID string) error

	// DeleteOlderThan enforces the default retention window
	DeleteOlderThan(ctx context.Context, before int64) error

	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}
