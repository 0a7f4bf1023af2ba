package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// TriggerJobStore persists trigger jobs and their lifecycle.
type TriggerJobStore struct {
	db *sql.DB
}

func NewTriggerJobStore(db *sql.DB) *TriggerJobStore {
	return &TriggerJobStore{db: db}
}

// Insert records a new job. Frequency-capped matches are stored too; being
// observable is the point.
func (s *TriggerJobStore) Insert(ctx context.Context, job *domain.TriggerJob) error {
	personalization, err := json.Marshal(job.Personalization)
	if err != nil {
		return fmt.Errorf("failed to marshal personalization data: %w", err)
	}

	const q = `
INSERT INTO trigger_jobs (job_id, trigger_name, identity_id, action, personalization, scheduled_for, status, failure_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (job_id) DO NOTHING;
`
	_, err = s.db.ExecContext(ctx, q,
		job.JobID,
		job.TriggerName,
		job.IdentityID,
		job.Action,
		personalization,
		job.ScheduledFor,
		string(job.Status),
		nullable(job.FailureReason),
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trigger job: %w", err)
	}
	return nil
}

// UpdateStatus records an executor outcome for a job.
func (s *TriggerJobStore) UpdateStatus(ctx context.Context, jobID string, status domain.TriggerStatus, reason string) error {
	const q = `UPDATE trigger_jobs SET status = $2, failure_reason = $3 WHERE job_id = $1;`

	res, err := s.db.ExecContext(ctx, q, jobID, string(status), nullable(reason))
	if err != nil {
		return fmt.Errorf("failed to update trigger job status: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if ra == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns a single job by id.
func (s *TriggerJobStore) Get(ctx context.Context, jobID string) (*domain.TriggerJob, error) {
	const q = `
SELECT job_id, trigger_name, identity_id, action, personalization, scheduled_for, status, failure_reason, created_at
FROM trigger_jobs
WHERE job_id = $1;
`
	var (
		job             domain.TriggerJob
		personalization []byte
		reason          sql.NullString
		status          string
	)
	err := s.db.QueryRowContext(ctx, q, jobID).Scan(
		&job.JobID,
		&job.TriggerName,
		&job.IdentityID,
		&job.Action,
		&personalization,
		&job.ScheduledFor,
		&status,
		&reason,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trigger job: %w", err)
	}
	if err := json.Unmarshal(personalization, &job.Personalization); err != nil {
		return nil, fmt.Errorf("failed to unmarshal personalization data: %w", err)
	}
	job.Status = domain.TriggerStatus(status)
	job.FailureReason = reason.String
	return &job, nil
}

// PendingJobs returns every job still awaiting dispatch, for scheduler
// restore after a restart.
func (s *TriggerJobStore) PendingJobs(ctx context.Context) ([]*domain.TriggerJob, error) {
	const q = `
SELECT job_id, trigger_name, identity_id, action, personalization, scheduled_for, status, failure_reason, created_at
FROM trigger_jobs
WHERE status = $1
ORDER BY scheduled_for;
`
	rows, err := s.db.QueryContext(ctx, q, string(domain.TriggerScheduled))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending trigger jobs: %w", err)
	}
	defer rows.Close()

	var out []*domain.TriggerJob
	for rows.Next() {
		var (
			job             domain.TriggerJob
			personalization []byte
			reason          sql.NullString
			status          string
		)
		if err := rows.Scan(
			&job.JobID,
			&job.TriggerName,
			&job.IdentityID,
			&job.Action,
			&personalization,
			&job.ScheduledFor,
			&status,
			&reason,
			&job.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trigger job row: %w", err)
		}
		if err := json.Unmarshal(personalization, &job.Personalization); err != nil {
			return nil, fmt.Errorf("failed to unmarshal personalization data: %w", err)
		}
		job.Status = domain.TriggerStatus(status)
		job.FailureReason = reason.String
		out = append(out, &job)
	}
	return out, rows.Err()
}

// DeadLetterStore persists retry-exhausted records for manual inspection.
type DeadLetterStore struct {
	db *sql.DB
}

func NewDeadLetterStore(db *sql.DB) *DeadLetterStore {
	return &DeadLetterStore{db: db}
}

func (s *DeadLetterStore) Insert(ctx context.Context, dl *domain.DeadLetter) error {
	const q = `
INSERT INTO dead_letters (source, reference, payload, reason, occurred_at)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := s.db.ExecContext(ctx, q, dl.Source, dl.Reference, dl.Payload, dl.Reason, dl.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}
