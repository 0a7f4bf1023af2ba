package consumer

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/metrics"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository"
)

// ProfileApplier folds events into rolling behavior profiles.
type ProfileApplier interface {
	Apply(e *domain.Event) (prev, curr domain.BehaviorProfile)
}

// AggregatorConfig configures batching and worker sharding
type AggregatorConfig struct {
	Workers       int
	MaxBatchSize  int
	FlushTimeout  time.Duration
	ChannelDepth  int
	InsertRetries int
}

// Aggregator shards envelopes across workers by identity, persists event
// batches and folds them into profiles. Identity-sharding guarantees ordered
// mutation per profile without a lock around the fold itself.
type Aggregator struct {
	repository  repository.EventRepository
	profiles    ProfileApplier
	deadLetters DeadLetterSink
	config      AggregatorConfig
	log         *zap.Logger
}

// NewAggregator creates a new event aggregator
func NewAggregator(repo repository.EventRepository, profiles ProfileApplier, deadLetters DeadLetterSink, config AggregatorConfig, log *zap.Logger) *Aggregator {
	if config.Workers <= 0 {
		config.Workers = 8
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 100
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = 5 * time.Second
	}
	if config.ChannelDepth <= 0 {
		config.ChannelDepth = 1024
	}
	if config.InsertRetries <= 0 {
		config.InsertRetries = 3
	}
	return &Aggregator{
		repository:  repo,
		profiles:    profiles,
		deadLetters: deadLetters,
		config:      config,
		log:         log,
	}
}

// Start shards envelopes to workers and emits one profile update per
// identity per flushed batch
func (a *Aggregator) Start(ctx context.Context, in <-chan *Envelope, out chan<- domain.ProfileUpdate) {
	defer close(out)

	workerChans := make([]chan *Envelope, a.config.Workers)
	var wg sync.WaitGroup

	for i := range workerChans {
		workerChans[i] = make(chan *Envelope, a.config.ChannelDepth)
		wg.Add(1)
		go func(ch <-chan *Envelope) {
			defer wg.Done()
			a.runWorker(ctx, ch, out)
		}(workerChans[i])
	}

	for env := range in {
		idx := a.shardFor(env.Event.IdentityID)
		select {
		case <-ctx.Done():
			// Drain without processing; unacked messages redeliver.
			for i := range workerChans {
				close(workerChans[i])
			}
			wg.Wait()
			return
		case workerChans[idx] <- env:
		}
	}

	for i := range workerChans {
		close(workerChans[i])
	}
	wg.Wait()
}

func (a *Aggregator) shardFor(identityID string) int {
	h := fnv.New32a()
	h.Write([]byte(identityID))
	return int(h.Sum32() % uint32(a.config.Workers))
}

// runWorker batches envelopes and flushes on size or timeout
func (a *Aggregator) runWorker(ctx context.Context, in <-chan *Envelope, out chan<- domain.ProfileUpdate) {
	ticker := time.NewTicker(a.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]*Envelope, 0, a.config.MaxBatchSize)

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				a.processBatch(ctx, batch, out)
			}
			return

		case env, ok := <-in:
			if !ok {
				if len(batch) > 0 {
					a.processBatch(ctx, batch, out)
				}
				return
			}

			batch = append(batch, env)

			if len(batch) >= a.config.MaxBatchSize {
				a.processBatch(ctx, batch, out)
				batch = make([]*Envelope, 0, a.config.MaxBatchSize)
				ticker.Reset(a.config.FlushTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				a.processBatch(ctx, batch, out)
				batch = make([]*Envelope, 0, a.config.MaxBatchSize)
			}
		}
	}
}

// processBatch persists the batch, folds it into profiles in event order and
// emits per-identity updates
func (a *Aggregator) processBatch(ctx context.Context, envelopes []*Envelope, out chan<- domain.ProfileUpdate) {
	sort.SliceStable(envelopes, func(i, j int) bool {
		if envelopes[i].Event.IdentityID != envelopes[j].Event.IdentityID {
			return envelopes[i].Event.IdentityID < envelopes[j].Event.IdentityID
		}
		return envelopes[i].Event.OccurredAt < envelopes[j].Event.OccurredAt
	})

	events := make([]*domain.Event, len(envelopes))
	for i, env := range envelopes {
		events[i] = env.Event
	}

	if !a.insertWithRetry(ctx, events) {
		a.deadLetterBatch(ctx, envelopes)
		return
	}

	// Fold in order; the events are already grouped by identity.
	updates := make(map[string]*domain.ProfileUpdate)
	for _, e := range events {
		prev, curr := a.profiles.Apply(e)
		u, ok := updates[e.IdentityID]
		if !ok {
			u = &domain.ProfileUpdate{IdentityID: e.IdentityID, Prev: prev}
			updates[e.IdentityID] = u
		}
		u.Curr = curr
		u.Events = append(u.Events, e)
	}

	a.ackAll(ctx, envelopes)

	for _, u := range updates {
		metrics.ProfileUpdates.Inc()
		select {
		case <-ctx.Done():
			return
		case out <- *u:
		}
	}

	a.log.Debug("Batch aggregated",
		zap.Int("event_count", len(events)),
		zap.Int("identity_count", len(updates)))
}

// insertWithRetry appends the batch to the event store, retrying transient
// failures with jittered backoff
func (a *Aggregator) insertWithRetry(ctx context.Context, events []*domain.Event) bool {
	for attempt := 0; attempt < a.config.InsertRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(retryBackoff(attempt, 100*time.Millisecond, 2*time.Second)):
			}
		}

		inserted, err := a.repository.InsertBatch(ctx, events)
		if err == nil && inserted == len(events) {
			return true
		}

		a.log.Warn("Failed to insert event batch",
			zap.Int("attempt", attempt+1),
			zap.Int("event_count", len(events)),
			zap.Error(err))
	}
	return false
}

// deadLetterBatch records every event of an insert-exhausted batch and acks
// so the queue does not redeliver what the dead-letter table now owns
func (a *Aggregator) deadLetterBatch(ctx context.Context, envelopes []*Envelope) {
	now := time.Now().UTC()
	for _, env := range envelopes {
		dl := &domain.DeadLetter{
			Source:     "aggregator",
			Reference:  env.Event.EventID,
			Payload:    env.Event.Payload,
			Reason:     "event store insert retries exhausted",
			OccurredAt: now,
		}
		if err := a.deadLetters.Insert(ctx, dl); err != nil {
			// Could not dead-letter either: leave in SQS for redelivery.
			a.log.Error("Failed to record dead letter",
				zap.String("event_id", env.Event.EventID),
				zap.Error(err))
			if err := env.Nack(ctx); err != nil {
				a.log.Error("Failed to nack envelope", zap.Error(err))
			}
			continue
		}
		metrics.DeadLetters.WithLabelValues("aggregator").Inc()
		if err := env.Ack(ctx); err != nil {
			a.log.Error("Failed to ack dead-lettered envelope", zap.Error(err))
		}
	}
}

// ackAll acknowledges all envelopes (deletes from SQS)
func (a *Aggregator) ackAll(ctx context.Context, envelopes []*Envelope) {
	for _, env := range envelopes {
		if err := env.Ack(ctx); err != nil {
			a.log.Error("Failed to ack envelope", zap.Error(err))
		}
	}
}
