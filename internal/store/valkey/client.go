package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/config"
	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// Client wraps a Valkey connection for the pipeline's hot keys: the dedupe
// window, the consent cache and trigger frequency caps.
type Client struct {
	rdb          *redis.Client
	dedupeWindow time.Duration
	log          *zap.Logger
}

func NewClient(ctx context.Context, cfg config.Valkey, dedupeWindow time.Duration, log *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		DB:   cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	log.Info("Valkey connection established",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port))

	return &Client{rdb: rdb, dedupeWindow: dedupeWindow, log: log}, nil
}

// Seen reports whether the event id was already observed within the dedupe
// window. The check does not open the window: only MarkSeen does, after the
// event is durably enqueued, so a shed or rejected event retries cleanly
// under the same id.
func (c *Client) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, "dedupe:"+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe window: %w", err)
	}
	return n > 0, nil
}

// MarkSeen opens the dedupe window for an event id.
func (c *Client) MarkSeen(ctx context.Context, eventID string) error {
	if err := c.rdb.SetNX(ctx, "dedupe:"+eventID, 1, c.dedupeWindow).Err(); err != nil {
		return fmt.Errorf("failed to mark event seen: %w", err)
	}
	return nil
}

// TryAcquire performs the frequency-cap check-and-set for one
// (trigger, identity) pair. Returns false when still within the cap window.
func (c *Client) TryAcquire(ctx context.Context, triggerName, identityID string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("cap:%s:%s", triggerName, identityID)
	ok, err := c.rdb.SetNX(ctx, key, time.Now().Unix(), window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire frequency cap: %w", err)
	}
	return ok, nil
}

// Release gives back a frequency-cap window acquired for a job that was
// never persisted.
func (c *Client) Release(ctx context.Context, triggerName, identityID string) error {
	key := fmt.Sprintf("cap:%s:%s", triggerName, identityID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release frequency cap: %w", err)
	}
	return nil
}

// GetConsent returns a cached consent record, or (nil, false) on miss.
func (c *Client) GetConsent(ctx context.Context, identityID string) (*domain.ConsentRecord, bool, error) {
	raw, err := c.rdb.Get(ctx, "consent:"+identityID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read consent cache: %w", err)
	}

	var rec domain.ConsentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Treat a corrupt cache entry as a miss; the store is authoritative.
		c.log.Warn("Corrupt consent cache entry", zap.String("identity_id", identityID), zap.Error(err))
		return nil, false, nil
	}
	return &rec, true, nil
}

// SetConsent caches a consent record.
func (c *Client) SetConsent(ctx context.Context, rec *domain.ConsentRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal consent record: %w", err)
	}
	if err := c.rdb.Set(ctx, "consent:"+rec.IdentityID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write consent cache: %w", err)
	}
	return nil
}

// InvalidateConsent drops a cached consent record after record/revoke.
func (c *Client) InvalidateConsent(ctx context.Context, identityID string) error {
	if err := c.rdb.Del(ctx, "consent:"+identityID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate consent cache: %w", err)
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
