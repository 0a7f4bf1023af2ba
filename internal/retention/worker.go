package retention

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository"
)

// AnonymizationQueue hands out identities whose anonymization is due.
type AnonymizationQueue interface {
	DueAnonymizations(ctx context.Context, now time.Time) ([]string, error)
	MarkAnonymized(ctx context.Context, identityID string) error
}

// ProfileAnonymizer zeroes the in-memory rolling profile.
type ProfileAnonymizer interface {
	Anonymize(identityID string, at time.Time)
}

// IdentityAnonymizer strips device signals from the identity index.
type IdentityAnonymizer interface {
	Anonymize(ctx context.Context, identityID string) error
}

// WorkerConfig configures the retention sweep.
type WorkerConfig struct {
	SweepInterval  time.Duration
	EventRetention time.Duration
}

// Worker enforces retention policy on a sweep cadence: due anonymizations
// first, then the default event retention window. A revoked identity's data
// is gone from every store within the SLA, not merely flagged.
type Worker struct {
	queue      AnonymizationQueue
	profiles   ProfileAnonymizer
	identities IdentityAnonymizer
	repository repository.EventRepository
	config     WorkerConfig
	log        *zap.Logger
}

func NewWorker(
	queue AnonymizationQueue,
	profiles ProfileAnonymizer,
	identities IdentityAnonymizer,
	repo repository.EventRepository,
	config WorkerConfig,
	log *zap.Logger,
) *Worker {
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5 * time.Minute
	}
	if config.EventRetention <= 0 {
		config.EventRetention = 395 * 24 * time.Hour
	}
	return &Worker{
		queue:      queue,
		profiles:   profiles,
		identities: identities,
		repository: repo,
		config:     config,
		log:        log,
	}
}

// Run sweeps until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Retention worker shutting down")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass.
func (w *Worker) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	due, err := w.queue.DueAnonymizations(ctx, now)
	if err != nil {
		w.log.Error("Failed to read due anonymizations", zap.Error(err))
	} else {
		for _, identityID := range due {
			w.anonymize(ctx, identityID, now)
		}
	}

	cutoff := now.Add(-w.config.EventRetention).Unix()
	if err := w.repository.DeleteOlderThan(ctx, cutoff); err != nil {
		w.log.Error("Failed to enforce event retention window", zap.Error(err))
	}
}

// anonymize applies one identity's deletion across every store. Each store
// is attempted regardless of earlier failures; the queue entry stays until
// all of them succeed, so a failed pass retries next sweep.
func (w *Worker) anonymize(ctx context.Context, identityID string, now time.Time) {
	failed := false

	if err := w.repository.ScrubIdentity(ctx, identityID); err != nil {
		w.log.Error("Failed to scrub event history",
			zap.String("identity_id", identityID),
			zap.Error(err))
		failed = true
	}

	// An identity unknown to this index has nothing left to strip.
	if err := w.identities.Anonymize(ctx, identityID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		w.log.Error("Failed to anonymize identity record",
			zap.String("identity_id", identityID),
			zap.Error(err))
		failed = true
	}

	w.profiles.Anonymize(identityID, now)

	if failed {
		return
	}

	if err := w.queue.MarkAnonymized(ctx, identityID); err != nil {
		w.log.Error("Failed to mark anonymization complete",
			zap.String("identity_id", identityID),
			zap.Error(err))
		return
	}

	w.log.Info("Identity anonymized", zap.String("identity_id", identityID))
}
