package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/metrics"
)

// Subscriber is one dashboard stream consumer. Its buffer is bounded; a slow
// consumer loses the oldest updates, never stalls the pipeline.
type Subscriber struct {
	ID      string
	Updates chan domain.MetricUpdate
}

// Hub fans profile/score updates out to stream subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
	log         *zap.Logger
}

func NewHub(bufferSize int, log *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
		log:         log,
	}
}

// Subscribe registers a new stream consumer.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:      uuid.NewString(),
		Updates: make(chan domain.MetricUpdate, h.bufferSize),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	h.log.Info("Stream subscriber connected", zap.String("subscriber_id", sub.ID))
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		close(sub.Updates)
		h.log.Info("Stream subscriber disconnected", zap.String("subscriber_id", id))
	}
}

// Publish fans an update out to all subscribers without ever blocking the
// caller. A full buffer drops its oldest entry to make room.
func (h *Hub) Publish(update domain.MetricUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		for {
			select {
			case sub.Updates <- update:
			default:
				select {
				case <-sub.Updates:
					metrics.BroadcastDrops.Inc()
				default:
				}
				continue
			}
			break
		}
	}
}
