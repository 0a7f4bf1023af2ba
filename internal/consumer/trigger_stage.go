package consumer

import (
	"context"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// TriggerEvaluator turns profile deltas into scheduled marketing jobs.
type TriggerEvaluator interface {
	Evaluate(ctx context.Context, u domain.ProfileUpdate) ([]*domain.TriggerJob, error)
}

// JobScheduler queues jobs for dispatch at their scheduled time.
type JobScheduler interface {
	Schedule(job *domain.TriggerJob)
}

// TriggerStage is the pipeline's terminal stage: it evaluates trigger rules
// against each scored update and hands matches to the scheduler.
type TriggerStage struct {
	engine    TriggerEvaluator
	scheduler JobScheduler
	log       *zap.Logger
}

// NewTriggerStage creates a new trigger evaluation stage
func NewTriggerStage(engine TriggerEvaluator, scheduler JobScheduler, log *zap.Logger) *TriggerStage {
	return &TriggerStage{
		engine:    engine,
		scheduler: scheduler,
		log:       log,
	}
}

// Start evaluates trigger rules for each profile update
func (t *TriggerStage) Start(ctx context.Context, in <-chan domain.ProfileUpdate) {
	for {
		select {
		case <-ctx.Done():
			t.log.Info("Trigger stage shutting down")
			return
		case u, ok := <-in:
			if !ok {
				t.log.Info("Trigger stage input channel closed")
				return
			}

			jobs, err := t.engine.Evaluate(ctx, u)
			if err != nil {
				// Evaluation is best-effort relative to ingestion: the
				// events are already durable, so log and move on.
				t.log.Error("Failed to evaluate triggers",
					zap.String("identity_id", u.IdentityID),
					zap.Error(err))
				continue
			}

			for _, job := range jobs {
				t.scheduler.Schedule(job)
			}
		}
	}
}
