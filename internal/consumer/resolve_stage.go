package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/journey"
)

// IdentityResolver maps raw signals to a stable identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, signals domain.IdentitySignals) (domain.Resolution, error)
}

// ResolveStage binds each consented event to its identity and produces the
// storable event form.
type ResolveStage struct {
	resolver IdentityResolver
	log      *zap.Logger
}

// NewResolveStage creates a new identity resolution stage
func NewResolveStage(resolver IdentityResolver, log *zap.Logger) *ResolveStage {
	return &ResolveStage{resolver: resolver, log: log}
}

// Start resolves identities and fills in the envelope's event
func (r *ResolveStage) Start(ctx context.Context, in <-chan *Envelope, out chan<- *Envelope) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Resolve stage shutting down")
			return
		case env, ok := <-in:
			if !ok {
				r.log.Info("Resolve stage input channel closed")
				return
			}

			res, err := r.resolver.Resolve(ctx, env.Inbound.Signals)
			if err != nil {
				// Resolution never blocks ingestion; a failure here is
				// transient, so leave the message for redelivery.
				r.log.Error("Failed to resolve identity",
					zap.String("event_id", env.Inbound.EventID),
					zap.Error(err))
				if err := env.Nack(ctx); err != nil {
					r.log.Error("Failed to nack envelope", zap.Error(err))
				}
				continue
			}

			env.Event = &domain.Event{
				EventID:    env.Inbound.EventID,
				IdentityID: res.IdentityID,
				SessionID:  env.Inbound.Signals.SessionID,
				Type:       env.Inbound.Type,
				StageRank:  journey.StageRankFor(env.Inbound.Type),
				Payload:    env.Inbound.Payload,
				OccurredAt: env.Inbound.OccurredAt,
				ReceivedAt: env.Inbound.ReceivedAt,
				Version:    uint64(time.Now().UnixNano()),
			}

			select {
			case <-ctx.Done():
				return
			case out <- env:
			}
		}
	}
}
