package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/dto"
	"github.com/ronaldopdias/behavior-analytics-service/internal/metrics"
	"github.com/ronaldopdias/behavior-analytics-service/internal/queue"
)

// DedupeStore is the sliding-window duplicate check. Seen never opens the
// window; MarkSeen does, and only after a successful enqueue, so shed and
// rejected events stay retryable under the same event id.
type DedupeStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

// ConsentGate is the gate surface the gateway needs: a pre-resolution check
// against the request's identity signals.
type ConsentGate interface {
	CheckSignals(ctx context.Context, signals domain.IdentitySignals, category domain.ConsentCategory) (string, bool)
}

// IngestResult is the gateway's verdict for one event.
type IngestResult struct {
	Status        string
	Reason        string
	RetryAfterSec int
}

// IngestServicer defines the ingestion gateway interface.
type IngestServicer interface {
	Ingest(ctx context.Context, req *dto.IngestEventRequest) IngestResult
	IngestBulk(ctx context.Context, reqs []dto.IngestEventRequest) []IngestResult
}

// IngestService validates, deduplicates, consent-checks and enqueues
// incoming events. It promises bounded queuing delay, not delivery under
// overload: when the in-flight publish budget is exhausted it sheds with a
// retryable status instead of blocking.
type IngestService struct {
	publisher     queue.QueuePublisher
	dedupe        DedupeStore
	gate          ConsentGate
	inFlight      chan struct{}
	shedRetrySec  int
	futureSkewSec int64
	log           *zap.Logger
}

// IngestConfig bundles the gateway knobs.
type IngestConfig struct {
	MaxInFlight   int
	ShedRetrySec  int
	FutureSkewSec int64
}

func NewIngestService(publisher queue.QueuePublisher, dedupe DedupeStore, gate ConsentGate, cfg IngestConfig, log *zap.Logger) *IngestService {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 256
	}
	if cfg.ShedRetrySec <= 0 {
		cfg.ShedRetrySec = 5
	}
	if cfg.FutureSkewSec <= 0 {
		cfg.FutureSkewSec = 60
	}
	return &IngestService{
		publisher:     publisher,
		dedupe:        dedupe,
		gate:          gate,
		inFlight:      make(chan struct{}, cfg.MaxInFlight),
		shedRetrySec:  cfg.ShedRetrySec,
		futureSkewSec: cfg.FutureSkewSec,
		log:           log,
	}
}

// Ingest processes a single event through validate → dedupe → consent →
// enqueue. Validation and consent failures resolve here and never escape as
// pipeline errors.
func (s *IngestService) Ingest(ctx context.Context, req *dto.IngestEventRequest) IngestResult {
	eventType, err := domain.ParseEventType(req.EventType)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("unknown_type").Inc()
		return IngestResult{Status: dto.StatusRejected, Reason: err.Error()}
	}

	if err := domain.ValidatePayload(eventType, req.Payload); err != nil {
		metrics.EventsRejected.WithLabelValues("malformed_payload").Inc()
		return IngestResult{Status: dto.StatusRejected, Reason: err.Error()}
	}

	now := time.Now()
	if req.OccurredAt > now.Unix()+s.futureSkewSec {
		metrics.EventsRejected.WithLabelValues("future_timestamp").Inc()
		return IngestResult{
			Status: dto.StatusRejected,
			Reason: fmt.Sprintf("occurred_at cannot be in the future: %d", req.OccurredAt),
		}
	}

	seen, err := s.dedupe.Seen(ctx, req.EventID)
	if err != nil {
		// Dedupe store down is a transient infra failure. Accepting a
		// possible duplicate beats dropping a real event: the window is
		// best-effort, the profile fold is the counted effect.
		s.log.Warn("Dedupe check failed, accepting event",
			zap.String("event_id", req.EventID),
			zap.Error(err))
	} else if seen {
		metrics.EventsDeduplicated.Inc()
		return IngestResult{Status: dto.StatusDeduplicated}
	}

	if _, ok := s.gate.CheckSignals(ctx, signalsFromDTO(req.Signals), domain.ConsentAnalytics); !ok {
		// Fail closed: dropped now, never queued for later. From the
		// producer's perspective this is a rejection, not an error.
		return IngestResult{Status: dto.StatusRejected, Reason: "analytics consent not granted"}
	}

	select {
	case s.inFlight <- struct{}{}:
	default:
		metrics.EventsShed.Inc()
		return IngestResult{Status: dto.StatusShed, RetryAfterSec: s.shedRetrySec}
	}
	defer func() { <-s.inFlight }()

	inbound := &domain.InboundEvent{
		EventID:    req.EventID,
		Signals:    signalsFromDTO(req.Signals),
		Type:       eventType,
		Payload:    string(req.Payload),
		OccurredAt: req.OccurredAt,
		ReceivedAt: now.UTC(),
	}

	if err := s.publisher.PublishEvent(ctx, inbound); err != nil {
		s.log.Error("Failed to publish event to queue",
			zap.String("event_id", req.EventID),
			zap.Error(err))
		metrics.EventsShed.Inc()
		return IngestResult{Status: dto.StatusShed, RetryAfterSec: s.shedRetrySec}
	}

	// The event is enqueued; now open the dedupe window. A failure here only
	// means a duplicate might slip through, never that a retry is swallowed.
	if err := s.dedupe.MarkSeen(ctx, req.EventID); err != nil {
		s.log.Warn("Failed to mark event seen",
			zap.String("event_id", req.EventID),
			zap.Error(err))
	}

	metrics.EventsAccepted.Inc()
	return IngestResult{Status: dto.StatusAccepted}
}

// IngestBulk processes events independently; one bad event never fails the
// batch.
func (s *IngestService) IngestBulk(ctx context.Context, reqs []dto.IngestEventRequest) []IngestResult {
	results := make([]IngestResult, 0, len(reqs))
	for i := range reqs {
		results = append(results, s.Ingest(ctx, &reqs[i]))
	}
	return results
}

func signalsFromDTO(s dto.IdentitySignals) domain.IdentitySignals {
	return domain.IdentitySignals{
		Fingerprint: s.Fingerprint,
		FallbackID:  s.FallbackID,
		SessionID:   s.SessionID,
	}
}

var _ IngestServicer = (*IngestService)(nil)

// ErrNotIngestable is reserved for callers that need a sentinel around
// rejected results.
var ErrNotIngestable = errors.New("event not ingestable")
