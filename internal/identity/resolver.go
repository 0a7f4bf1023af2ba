package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// Store persists identity records behind the in-memory index. The signal
// lookups cover identities minted by another process after this one warmed
// its index.
type Store interface {
	Save(ctx context.Context, id *domain.Identity) error
	All(ctx context.Context) ([]*domain.Identity, error)
	ByFingerprint(ctx context.Context, fingerprint string) (*domain.Identity, error)
	ByFallback(ctx context.Context, fallbackID string) (*domain.Identity, error)
}

// MergeHandler is notified when two identities merge, so dependent state
// (the behavior profile, consent key bindings) can follow the survivor.
type MergeHandler func(survivorID, mergedID string)

// Resolver maps raw device signals to a stable pseudonymous identity.
// Resolution is deterministic: exact fingerprint match first, then any known
// fallback id, else a new identity. The in-memory index is authoritative for
// the process; the store is write-through durability and warm-up.
type Resolver struct {
	mu            sync.Mutex
	byFingerprint map[string]string
	byFallback    map[string]string
	aliases       map[string]string
	identities    map[string]*domain.Identity

	store   Store
	onMerge MergeHandler
	log     *zap.Logger
}

func NewResolver(store Store, log *zap.Logger) *Resolver {
	return &Resolver{
		byFingerprint: make(map[string]string),
		byFallback:    make(map[string]string),
		aliases:       make(map[string]string),
		identities:    make(map[string]*domain.Identity),
		store:         store,
		log:           log,
	}
}

// OnMerge registers the merge handler. Must be called before Resolve is.
func (r *Resolver) OnMerge(h MergeHandler) {
	r.onMerge = h
}

// Warm loads the durable identity records into the index.
func (r *Resolver) Warm(ctx context.Context) error {
	ids, err := r.store.All(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.index(id)
	}

	r.log.Info("Identity index warmed", zap.Int("identities", len(ids)))
	return nil
}

// Resolve maps signals to an identity, creating or merging as needed.
// An ambiguous state never blocks ingestion: conflicts resolve
// deterministically inside this call.
func (r *Resolver) Resolve(ctx context.Context, signals domain.IdentitySignals) (domain.Resolution, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		id         *domain.Identity
		confidence domain.MatchConfidence
	)

	if signals.Fingerprint != "" {
		if found := r.lookupFingerprint(ctx, signals.Fingerprint); found != nil {
			id = found
			confidence = domain.MatchExact

			// A fallback id bound to a different identity means two
			// previously distinct identities share this fingerprint:
			// merge the older into the newer.
			if signals.FallbackID != "" {
				if other := r.lookupFallback(ctx, signals.FallbackID); other != nil && other.IdentityID != id.IdentityID {
					id = r.merge(ctx, id.IdentityID, other.IdentityID, now)
				}
			}
		}
	}

	if id == nil && signals.FallbackID != "" {
		if found := r.lookupFallback(ctx, signals.FallbackID); found != nil {
			id = found
			confidence = domain.MatchFallback
			// Late-arriving fingerprint attaches to the matched identity.
			if signals.Fingerprint != "" && id.Fingerprint == "" {
				id.Fingerprint = signals.Fingerprint
				r.byFingerprint[signals.Fingerprint] = id.IdentityID
			}
		}
	}

	if id == nil {
		id = &domain.Identity{
			IdentityID:  uuid.NewString(),
			Fingerprint: signals.Fingerprint,
			FirstSeenAt: now,
		}
		confidence = domain.MatchNew
		r.identities[id.IdentityID] = id
		if id.Fingerprint != "" {
			r.byFingerprint[id.Fingerprint] = id.IdentityID
		}
	}

	if signals.FallbackID != "" {
		if _, ok := r.byFallback[signals.FallbackID]; !ok {
			r.byFallback[signals.FallbackID] = id.IdentityID
			id.FallbackIDs = appendUnique(id.FallbackIDs, signals.FallbackID)
		}
	}
	id.LastSeenAt = now

	if err := r.store.Save(ctx, id); err != nil {
		// Transient durability failure: the index stays authoritative and
		// ingestion continues.
		r.log.Warn("Failed to persist identity",
			zap.String("identity_id", id.IdentityID),
			zap.Error(err))
	}

	return domain.Resolution{IdentityID: id.IdentityID, Confidence: confidence}, nil
}

// lookupFingerprint finds the identity for a fingerprint, falling through to
// the durable store on index miss. The consent API runs in the other binary
// and mints identities this index has never seen; missing them here would
// split one visitor across two identity ids.
func (r *Resolver) lookupFingerprint(ctx context.Context, fingerprint string) *domain.Identity {
	if existing, ok := r.byFingerprint[fingerprint]; ok {
		return r.identities[r.follow(existing)]
	}

	id, err := r.store.ByFingerprint(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warn("Failed to read identity by fingerprint", zap.Error(err))
		}
		return nil
	}
	r.index(id)
	return id
}

// lookupFallback is lookupFingerprint for fallback ids.
func (r *Resolver) lookupFallback(ctx context.Context, fallbackID string) *domain.Identity {
	if existing, ok := r.byFallback[fallbackID]; ok {
		return r.identities[r.follow(existing)]
	}

	id, err := r.store.ByFallback(ctx, fallbackID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warn("Failed to read identity by fallback id", zap.Error(err))
		}
		return nil
	}
	r.index(id)
	return id
}

// index adopts a durable record into the in-memory maps. Caller holds the
// lock.
func (r *Resolver) index(id *domain.Identity) {
	r.identities[id.IdentityID] = id
	if id.Fingerprint != "" {
		r.byFingerprint[id.Fingerprint] = id.IdentityID
	}
	for _, fb := range id.FallbackIDs {
		r.byFallback[fb] = id.IdentityID
	}
	for _, m := range id.MergeHistory {
		r.aliases[m.MergedID] = id.IdentityID
	}
}

// Lookup returns an identity by id, following merge aliases.
func (r *Resolver) Lookup(identityID string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.identities[r.follow(identityID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *id
	return &cp, nil
}

// Anonymize strips device signals from an identity under retention policy.
// The record itself survives so history stays referentially intact.
func (r *Resolver) Anonymize(ctx context.Context, identityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.identities[r.follow(identityID)]
	if !ok {
		return domain.ErrNotFound
	}

	if id.Fingerprint != "" {
		delete(r.byFingerprint, id.Fingerprint)
		id.Fingerprint = ""
	}
	for _, fb := range id.FallbackIDs {
		delete(r.byFallback, fb)
	}
	id.FallbackIDs = nil
	id.Anonymized = true

	return r.store.Save(ctx, id)
}

// merge folds the older identity into the newer one. Deterministic
// tie-break on equal first-seen times: the lexicographically larger id
// survives, so replays converge on the same survivor.
func (r *Resolver) merge(ctx context.Context, aID, bID string, now time.Time) *domain.Identity {
	a, b := r.identities[aID], r.identities[bID]

	survivor, merged := a, b
	if a.FirstSeenAt.Before(b.FirstSeenAt) ||
		(a.FirstSeenAt.Equal(b.FirstSeenAt) && a.IdentityID < b.IdentityID) {
		survivor, merged = b, a
	}

	for _, fb := range merged.FallbackIDs {
		survivor.FallbackIDs = appendUnique(survivor.FallbackIDs, fb)
		r.byFallback[fb] = survivor.IdentityID
	}
	if survivor.Fingerprint == "" && merged.Fingerprint != "" {
		survivor.Fingerprint = merged.Fingerprint
	}
	if merged.Fingerprint != "" {
		r.byFingerprint[merged.Fingerprint] = survivor.IdentityID
	}
	if merged.FirstSeenAt.Before(survivor.FirstSeenAt) {
		survivor.FirstSeenAt = merged.FirstSeenAt
	}

	survivor.MergeHistory = append(survivor.MergeHistory, domain.MergeRecord{
		MergedID: merged.IdentityID,
		MergedAt: now,
		Reason:   "shared_fingerprint",
	})
	r.aliases[merged.IdentityID] = survivor.IdentityID
	delete(r.identities, merged.IdentityID)

	if err := r.store.Save(ctx, survivor); err != nil {
		r.log.Warn("Failed to persist merged identity",
			zap.String("identity_id", survivor.IdentityID),
			zap.Error(err))
	}

	r.log.Info("Identities merged",
		zap.String("survivor", survivor.IdentityID),
		zap.String("merged", merged.IdentityID))

	if r.onMerge != nil {
		r.onMerge(survivor.IdentityID, merged.IdentityID)
	}

	return survivor
}

// follow chases merge aliases to the surviving identity id.
func (r *Resolver) follow(identityID string) string {
	for {
		next, ok := r.aliases[identityID]
		if !ok {
			return identityID
		}
		identityID = next
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
