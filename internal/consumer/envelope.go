package consumer

import (
	"context"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// Envelope carries one queued event through the pipeline with its
// acknowledgment callbacks. The Inbound form is what the gateway enqueued;
// Event is filled in once identity resolution has run.
type Envelope struct {
	Inbound *domain.InboundEvent
	Event   *domain.Event
	ack     func(context.Context) error
	nack    func(context.Context) error
}

// NewEnvelope creates a new message envelope
func NewEnvelope(inbound *domain.InboundEvent, ack, nack func(context.Context) error) *Envelope {
	return &Envelope{
		Inbound: inbound,
		ack:     ack,
		nack:    nack,
	}
}

// Ack acknowledges successful processing
func (e *Envelope) Ack(ctx context.Context) error {
	if e.ack != nil {
		return e.ack(ctx)
	}
	return nil
}

// Nack negatively acknowledges processing
func (e *Envelope) Nack(ctx context.Context) error {
	if e.nack != nil {
		return e.nack(ctx)
	}
	return nil
}
