package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/metrics"
)

// CapStore performs the atomic frequency-cap check-and-set for one
// (trigger, identity) pair. Release returns an acquired window when the job
// it covered could not be persisted.
type CapStore interface {
	TryAcquire(ctx context.Context, triggerName, identityID string, window time.Duration) (bool, error)
	Release(ctx context.Context, triggerName, identityID string) error
}

// JobStore persists trigger jobs, including frequency-capped matches.
type JobStore interface {
	Insert(ctx context.Context, job *domain.TriggerJob) error
}

// ConsentChecker is the consent gate surface the engine needs.
type ConsentChecker interface {
	Check(ctx context.Context, identityID string, category domain.ConsentCategory) bool
}

// Engine evaluates trigger rules against profile deltas and produces jobs.
// Execution belongs to an external collaborator.
type Engine struct {
	rules   []Rule
	caps    CapStore
	jobs    JobStore
	consent ConsentChecker
	log     *zap.Logger
}

func NewEngine(rules []Rule, caps CapStore, jobs JobStore, consent ConsentChecker, log *zap.Logger) (*Engine, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid trigger rule: %w", err)
		}
	}
	return &Engine{rules: rules, caps: caps, jobs: jobs, consent: consent, log: log}, nil
}

// Evaluate runs every rule predicate against the update. Matches within the
// frequency-cap window are recorded as skipped, observably; the rest become
// scheduled jobs. Marketing consent vetoes everything, fail closed.
func (e *Engine) Evaluate(ctx context.Context, u domain.ProfileUpdate) ([]*domain.TriggerJob, error) {
	if !e.consent.Check(ctx, u.IdentityID, domain.ConsentMarketing) {
		return nil, nil
	}

	now := time.Now().UTC()
	var scheduled []*domain.TriggerJob

	for _, rule := range e.rules {
		if !rule.Predicate(u) {
			continue
		}

		job := &domain.TriggerJob{
			JobID:       uuid.NewString(),
			TriggerName: rule.Name,
			IdentityID:  u.IdentityID,
			Action:      rule.Action,
			CreatedAt:   now,
		}
		if rule.Personalize != nil {
			job.Personalization = rule.Personalize(u)
		}

		ok, err := e.caps.TryAcquire(ctx, rule.Name, u.IdentityID, rule.MaxFrequency)
		if err != nil {
			// Cap state unknown: skip rather than risk a duplicate fire.
			e.log.Warn("Frequency cap check failed, skipping match",
				zap.String("trigger", rule.Name),
				zap.String("identity_id", u.IdentityID),
				zap.Error(err))
			ok = false
		}

		if !ok {
			job.Status = domain.TriggerFrequencyCap
			job.ScheduledFor = now
			metrics.TriggersCapped.WithLabelValues(rule.Name).Inc()
		} else {
			job.Status = domain.TriggerScheduled
			job.ScheduledFor = now.Add(rule.Delay)
			metrics.TriggersFired.WithLabelValues(rule.Name).Inc()
			scheduled = append(scheduled, job)
		}

		if err := e.jobs.Insert(ctx, job); err != nil {
			// Don't burn the cap window on a job that was never recorded.
			if job.Status == domain.TriggerScheduled {
				if relErr := e.caps.Release(ctx, rule.Name, u.IdentityID); relErr != nil {
					e.log.Warn("Failed to release frequency cap after insert failure",
						zap.String("trigger", rule.Name),
						zap.String("identity_id", u.IdentityID),
						zap.Error(relErr))
				}
			}
			return nil, fmt.Errorf("failed to persist trigger job: %w", err)
		}

		e.log.Info("Trigger evaluated",
			zap.String("trigger", rule.Name),
			zap.String("identity_id", u.IdentityID),
			zap.String("status", string(job.Status)))
	}

	return scheduled, nil
}
