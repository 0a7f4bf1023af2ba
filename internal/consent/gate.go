package consent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/metrics"
)

// Store is the durable consent record store.
type Store interface {
	Upsert(ctx context.Context, rec *domain.ConsentRecord) error
	Get(ctx context.Context, identityID string) (*domain.ConsentRecord, error)
	BindKey(ctx context.Context, signalKey, identityID string) error
	IdentityForKey(ctx context.Context, signalKey string) (string, error)
	ScheduleAnonymization(ctx context.Context, identityID string, due time.Time) error
}

// Cache is the hot consent cache in front of the store.
type Cache interface {
	GetConsent(ctx context.Context, identityID string) (*domain.ConsentRecord, bool, error)
	SetConsent(ctx context.Context, rec *domain.ConsentRecord, ttl time.Duration) error
	InvalidateConsent(ctx context.Context, identityID string) error
}

// Resolver creates or looks up the identity a consent submission belongs to.
type Resolver interface {
	Resolve(ctx context.Context, signals domain.IdentitySignals) (domain.Resolution, error)
}

// Gate owns consent state and vetoes all downstream processing. Every
// failure path answers "no": a missing record, a store error and a timeout
// all fail closed.
type Gate struct {
	store        Store
	cache        Cache
	resolver     Resolver
	cacheTTL     time.Duration
	checkTimeout time.Duration
	anonymizeSLA time.Duration
	log          *zap.Logger
}

// GateConfig bundles the gate's timing knobs.
type GateConfig struct {
	CacheTTL     time.Duration
	CheckTimeout time.Duration
	AnonymizeSLA time.Duration
}

func NewGate(store Store, cache Cache, resolver Resolver, cfg GateConfig, log *zap.Logger) *Gate {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 200 * time.Millisecond
	}
	if cfg.AnonymizeSLA <= 0 {
		cfg.AnonymizeSLA = 24 * time.Hour
	}
	return &Gate{
		store:        store,
		cache:        cache,
		resolver:     resolver,
		cacheTTL:     cfg.CacheTTL,
		checkTimeout: cfg.CheckTimeout,
		anonymizeSLA: cfg.AnonymizeSLA,
		log:          log,
	}
}

// Check reports whether the identity granted the category. Never returns an
// error: any failure is a denial.
func (g *Gate) Check(ctx context.Context, identityID string, category domain.ConsentCategory) bool {
	ctx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()

	rec, hit, err := g.cache.GetConsent(ctx, identityID)
	if err != nil {
		g.log.Warn("Consent cache read failed, falling through to store",
			zap.String("identity_id", identityID),
			zap.Error(err))
	}

	if !hit {
		rec, err = g.store.Get(ctx, identityID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				g.log.Warn("Consent store read failed, failing closed",
					zap.String("identity_id", identityID),
					zap.Error(err))
			}
			metrics.ConsentDenied.WithLabelValues(string(category)).Inc()
			return false
		}
		if err := g.cache.SetConsent(ctx, rec, g.cacheTTL); err != nil {
			g.log.Warn("Consent cache write failed", zap.Error(err))
		}
	}

	if rec.Revoked || !rec.Preferences.Allows(category) {
		metrics.ConsentDenied.WithLabelValues(string(category)).Inc()
		return false
	}
	return true
}

// CheckSignals checks consent before identity resolution has run, using the
// highest-priority signal the request carries. Returns the bound identity id
// when consent passes.
func (g *Gate) CheckSignals(ctx context.Context, signals domain.IdentitySignals, category domain.ConsentCategory) (string, bool) {
	key := SignalKey(signals)
	if key == "" {
		metrics.ConsentDenied.WithLabelValues(string(category)).Inc()
		return "", false
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	identityID, err := g.store.IdentityForKey(lookupCtx, key)
	cancel()
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.log.Warn("Consent key lookup failed, failing closed", zap.Error(err))
		}
		metrics.ConsentDenied.WithLabelValues(string(category)).Inc()
		return "", false
	}

	return identityID, g.Check(ctx, identityID, category)
}

// Record writes a consent submission. The submission legitimately creates an
// identity when none exists, and binds every present signal key to it so
// later pre-resolution checks can find the record.
func (g *Gate) Record(ctx context.Context, signals domain.IdentitySignals, prefs domain.ConsentPreferences) (*domain.ConsentRecord, error) {
	res, err := g.resolver.Resolve(ctx, signals)
	if err != nil {
		return nil, err
	}

	rec := &domain.ConsentRecord{
		IdentityID:  res.IdentityID,
		Preferences: prefs,
		RecordedAt:  time.Now().UTC(),
	}

	if err := g.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}

	for _, key := range signalKeys(signals) {
		if err := g.store.BindKey(ctx, key, res.IdentityID); err != nil {
			return nil, err
		}
	}

	if err := g.cache.InvalidateConsent(ctx, res.IdentityID); err != nil {
		g.log.Warn("Consent cache invalidation failed", zap.Error(err))
	}

	g.log.Info("Consent recorded",
		zap.String("identity_id", res.IdentityID),
		zap.Bool("analytics", prefs.Analytics),
		zap.Bool("marketing", prefs.Marketing))

	return rec, nil
}

// Revoke withdraws all consent and schedules profile anonymization within
// the configured SLA.
func (g *Gate) Revoke(ctx context.Context, identityID string) error {
	rec := &domain.ConsentRecord{
		IdentityID:  identityID,
		Preferences: domain.ConsentPreferences{},
		RecordedAt:  time.Now().UTC(),
		Revoked:     true,
	}

	if err := g.store.Upsert(ctx, rec); err != nil {
		return err
	}
	if err := g.cache.InvalidateConsent(ctx, identityID); err != nil {
		g.log.Warn("Consent cache invalidation failed", zap.Error(err))
	}
	if err := g.store.ScheduleAnonymization(ctx, identityID, time.Now().UTC().Add(g.anonymizeSLA)); err != nil {
		return err
	}

	g.log.Info("Consent revoked, anonymization scheduled",
		zap.String("identity_id", identityID),
		zap.Duration("sla", g.anonymizeSLA))

	return nil
}

// ForceAnonymize schedules an immediate anonymization (data-subject
// deletion requests from operators).
func (g *Gate) ForceAnonymize(ctx context.Context, identityID string) error {
	return g.store.ScheduleAnonymization(ctx, identityID, time.Now().UTC())
}

// Get returns the authoritative record for an identity.
func (g *Gate) Get(ctx context.Context, identityID string) (*domain.ConsentRecord, error) {
	return g.store.Get(ctx, identityID)
}

// SignalKey returns the highest-priority signal key of a request, prefixed
// by kind so fingerprints and fallback ids can never collide.
func SignalKey(signals domain.IdentitySignals) string {
	switch {
	case signals.Fingerprint != "":
		return "fp:" + signals.Fingerprint
	case signals.FallbackID != "":
		return "fb:" + signals.FallbackID
	case signals.SessionID != "":
		return "sess:" + signals.SessionID
	default:
		return ""
	}
}

func signalKeys(signals domain.IdentitySignals) []string {
	var keys []string
	if signals.Fingerprint != "" {
		keys = append(keys, "fp:"+signals.Fingerprint)
	}
	if signals.FallbackID != "" {
		keys = append(keys, "fb:"+signals.FallbackID)
	}
	if signals.SessionID != "" {
		keys = append(keys, "sess:"+signals.SessionID)
	}
	return keys
}
