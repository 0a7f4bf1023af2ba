package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// ConsentStore persists authoritative consent records.
type ConsentStore struct {
	db *sql.DB
}

func NewConsentStore(db *sql.DB) *ConsentStore {
	return &ConsentStore{db: db}
}

// Upsert writes a consent record, bumping the version on change.
func (s *ConsentStore) Upsert(ctx context.Context, rec *domain.ConsentRecord) error {
	const q = `
INSERT INTO consent_records (identity_id, necessary, analytics, marketing, personalization, version, recorded_at, revoked)
VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
ON CONFLICT (identity_id) DO UPDATE SET
	necessary = EXCLUDED.necessary,
	analytics = EXCLUDED.analytics,
	marketing = EXCLUDED.marketing,
	personalization = EXCLUDED.personalization,
	version = consent_records.version + 1,
	recorded_at = EXCLUDED.recorded_at,
	revoked = EXCLUDED.revoked;
`
	_, err := s.db.ExecContext(ctx, q,
		rec.IdentityID,
		rec.Preferences.Necessary,
		rec.Preferences.Analytics,
		rec.Preferences.Marketing,
		rec.Preferences.Personalization,
		rec.RecordedAt,
		rec.Revoked,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consent record: %w", err)
	}
	return nil
}

// Get returns the consent record for one identity.
func (s *ConsentStore) Get(ctx context.Context, identityID string) (*domain.ConsentRecord, error) {
	const q = `
SELECT identity_id, necessary, analytics, marketing, personalization, version, recorded_at, revoked
FROM consent_records
WHERE identity_id = $1;
`
	var rec domain.ConsentRecord
	err := s.db.QueryRowContext(ctx, q, identityID).Scan(
		&rec.IdentityID,
		&rec.Preferences.Necessary,
		&rec.Preferences.Analytics,
		&rec.Preferences.Marketing,
		&rec.Preferences.Personalization,
		&rec.Version,
		&rec.RecordedAt,
		&rec.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consent record: %w", err)
	}
	return &rec, nil
}

// BindKey associates a signal key with an identity so consent can be checked
// before identity resolution has run.
func (s *ConsentStore) BindKey(ctx context.Context, signalKey, identityID string) error {
	const q = `
INSERT INTO consent_keys (signal_key, identity_id)
VALUES ($1, $2)
ON CONFLICT (signal_key) DO UPDATE SET identity_id = EXCLUDED.identity_id;
`
	if _, err := s.db.ExecContext(ctx, q, signalKey, identityID); err != nil {
		return fmt.Errorf("failed to bind consent key: %w", err)
	}
	return nil
}

// IdentityForKey resolves a signal key to the identity it was bound to.
func (s *ConsentStore) IdentityForKey(ctx context.Context, signalKey string) (string, error) {
	const q = `SELECT identity_id FROM consent_keys WHERE signal_key = $1;`

	var identityID string
	err := s.db.QueryRowContext(ctx, q, signalKey).Scan(&identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve consent key: %w", err)
	}
	return identityID, nil
}

// ScheduleAnonymization enqueues an identity for anonymization at due.
func (s *ConsentStore) ScheduleAnonymization(ctx context.Context, identityID string, due time.Time) error {
	const q = `
INSERT INTO anonymization_queue (identity_id, due_at, done)
VALUES ($1, $2, FALSE)
ON CONFLICT (identity_id) DO UPDATE SET due_at = LEAST(anonymization_queue.due_at, EXCLUDED.due_at), done = FALSE;
`
	if _, err := s.db.ExecContext(ctx, q, identityID, due); err != nil {
		return fmt.Errorf("failed to schedule anonymization: %w", err)
	}
	return nil
}

// DueAnonymizations returns identities whose anonymization deadline passed.
func (s *ConsentStore) DueAnonymizations(ctx context.Context, now time.Time) ([]string, error) {
	const q = `SELECT identity_id FROM anonymization_queue WHERE done = FALSE AND due_at <= $1;`

	rows, err := s.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due anonymizations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan anonymization row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkAnonymized records that the anonymization completed.
func (s *ConsentStore) MarkAnonymized(ctx context.Context, identityID string) error {
	const q = `UPDATE anonymization_queue SET done = TRUE WHERE identity_id = $1;`

	if _, err := s.db.ExecContext(ctx, q, identityID); err != nil {
		return fmt.Errorf("failed to mark anonymized: %w", err)
	}
	return nil
}
