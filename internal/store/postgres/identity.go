package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// IdentityStore persists identity records for resolver warm-up and audit.
type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// Save writes an identity record, replacing prior state.
func (s *IdentityStore) Save(ctx context.Context, id *domain.Identity) error {
	fallbacks, err := json.Marshal(id.FallbackIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal fallback ids: %w", err)
	}
	history, err := json.Marshal(id.MergeHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal merge history: %w", err)
	}

	const q = `
INSERT INTO identities (identity_id, fingerprint, fallback_ids, first_seen_at, last_seen_at, merge_history, anonymized)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (identity_id) DO UPDATE SET
	fingerprint = EXCLUDED.fingerprint,
	fallback_ids = EXCLUDED.fallback_ids,
	last_seen_at = EXCLUDED.last_seen_at,
	merge_history = EXCLUDED.merge_history,
	anonymized = EXCLUDED.anonymized;
`
	_, err = s.db.ExecContext(ctx, q,
		id.IdentityID,
		nullable(id.Fingerprint),
		fallbacks,
		id.FirstSeenAt,
		id.LastSeenAt,
		history,
		id.Anonymized,
	)
	if err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}
	return nil
}

// All streams every identity record, for resolver index warm-up.
func (s *IdentityStore) All(ctx context.Context) ([]*domain.Identity, error) {
	const q = `
SELECT identity_id, fingerprint, fallback_ids, first_seen_at, last_seen_at, merge_history, anonymized
FROM identities;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var out []*domain.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ByFingerprint returns the identity bound to a fingerprint, or ErrNotFound.
// Used by the resolver to catch identities minted by the other binary after
// its index warmed.
func (s *IdentityStore) ByFingerprint(ctx context.Context, fingerprint string) (*domain.Identity, error) {
	const q = `
SELECT identity_id, fingerprint, fallback_ids, first_seen_at, last_seen_at, merge_history, anonymized
FROM identities
WHERE fingerprint = $1
LIMIT 1;
`
	return s.queryOne(ctx, q, fingerprint)
}

// ByFallback returns the identity holding a fallback id, or ErrNotFound.
func (s *IdentityStore) ByFallback(ctx context.Context, fallbackID string) (*domain.Identity, error) {
	const q = `
SELECT identity_id, fingerprint, fallback_ids, first_seen_at, last_seen_at, merge_history, anonymized
FROM identities
WHERE fallback_ids @> to_jsonb($1::text)
LIMIT 1;
`
	return s.queryOne(ctx, q, fallbackID)
}

func (s *IdentityStore) queryOne(ctx context.Context, q string, arg any) (*domain.Identity, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query identity: %w", err)
		}
		return nil, domain.ErrNotFound
	}
	return scanIdentity(rows)
}

func scanIdentity(rows *sql.Rows) (*domain.Identity, error) {
	var (
		id          domain.Identity
		fingerprint sql.NullString
		fallbacks   []byte
		history     []byte
	)
	if err := rows.Scan(&id.IdentityID, &fingerprint, &fallbacks,
		&id.FirstSeenAt, &id.LastSeenAt, &history, &id.Anonymized); err != nil {
		return nil, fmt.Errorf("failed to scan identity row: %w", err)
	}
	id.Fingerprint = fingerprint.String
	if err := json.Unmarshal(fallbacks, &id.FallbackIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fallback ids: %w", err)
	}
	if err := json.Unmarshal(history, &id.MergeHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merge history: %w", err)
	}
	return &id, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
