package consumer

import (
	"context"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// SignalChecker is the pre-resolution consent check the gate stage needs.
type SignalChecker interface {
	CheckSignals(ctx context.Context, signals domain.IdentitySignals, category domain.ConsentCategory) (string, bool)
}

// GateStage re-checks analytics consent for every queued event. The gateway
// already checked once, but consent can be revoked while an event sits in the
// queue: the check nearest to the profile write is the one that counts.
type GateStage struct {
	gate SignalChecker
	log  *zap.Logger
}

// NewGateStage creates a new consent gate stage
func NewGateStage(gate SignalChecker, log *zap.Logger) *GateStage {
	return &GateStage{gate: gate, log: log}
}

// Start filters envelopes through the consent gate
func (g *GateStage) Start(ctx context.Context, in <-chan *Envelope, out chan<- *Envelope) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			g.log.Info("Consent gate stage shutting down")
			return
		case env, ok := <-in:
			if !ok {
				g.log.Info("Consent gate stage input channel closed")
				return
			}

			if _, allowed := g.gate.CheckSignals(ctx, env.Inbound.Signals, domain.ConsentAnalytics); !allowed {
				// Denied means dropped, not retried. Ack so the message
				// never redelivers.
				g.log.Debug("Event dropped by consent gate",
					zap.String("event_id", env.Inbound.EventID))
				if err := env.Ack(ctx); err != nil {
					g.log.Error("Failed to ack consent-denied message", zap.Error(err))
				}
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- env:
			}
		}
	}
}
