package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// MockIdentityStore is a mock implementation of identity.Store
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) Save(ctx context.Context, id *domain.Identity) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIdentityStore) All(ctx context.Context) ([]*domain.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Identity), args.Error(1)
}

func (m *MockIdentityStore) ByFingerprint(ctx context.Context, fingerprint string) (*domain.Identity, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockIdentityStore) ByFallback(ctx context.Context, fallbackID string) (*domain.Identity, error) {
	args := m.Called(ctx, fallbackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func newTestResolver() (*Resolver, *MockIdentityStore) {
	store := new(MockIdentityStore)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)
	store.On("ByFingerprint", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	store.On("ByFallback", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	return NewResolver(store, zap.NewNop()), store
}

func TestResolver_Resolve_NewIdentity(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	res, err := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1", SessionID: "s1"})

	assert.NoError(t, err)
	assert.NotEmpty(t, res.IdentityID)
	assert.Equal(t, domain.MatchNew, res.Confidence)
}

func TestResolver_Resolve_ExactFingerprintMatch(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	first, err := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1"})
	assert.NoError(t, err)

	second, err := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1", SessionID: "s2"})
	assert.NoError(t, err)

	assert.Equal(t, first.IdentityID, second.IdentityID)
	assert.Equal(t, domain.MatchExact, second.Confidence)
}

func TestResolver_Resolve_FallbackMatch(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	first, err := r.Resolve(ctx, domain.IdentitySignals{FallbackID: "fb1"})
	assert.NoError(t, err)
	assert.Equal(t, domain.MatchNew, first.Confidence)

	second, err := r.Resolve(ctx, domain.IdentitySignals{FallbackID: "fb1"})
	assert.NoError(t, err)

	assert.Equal(t, first.IdentityID, second.IdentityID)
	assert.Equal(t, domain.MatchFallback, second.Confidence)
}

func TestResolver_Resolve_LateFingerprintAttaches(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	first, _ := r.Resolve(ctx, domain.IdentitySignals{FallbackID: "fb1"})

	// Fallback matches, fingerprint was never seen: it attaches.
	second, _ := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp9", FallbackID: "fb1"})
	assert.Equal(t, first.IdentityID, second.IdentityID)

	// From now on the fingerprint resolves exactly.
	third, _ := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp9"})
	assert.Equal(t, first.IdentityID, third.IdentityID)
	assert.Equal(t, domain.MatchExact, third.Confidence)
}

func TestResolver_Resolve_MergeOnSharedFingerprint(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	var survivorID, mergedID string
	merges := 0
	r.OnMerge(func(s, m string) {
		survivorID, mergedID = s, m
		merges++
	})

	a, _ := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1"})
	b, _ := r.Resolve(ctx, domain.IdentitySignals{FallbackID: "fb1"})
	assert.NotEqual(t, a.IdentityID, b.IdentityID)

	// The same device now shows both signals: the two identities merge.
	merged, err := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1", FallbackID: "fb1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, merges)
	assert.Contains(t, []string{a.IdentityID, b.IdentityID}, merged.IdentityID)
	assert.Equal(t, merged.IdentityID, survivorID)
	assert.NotEqual(t, survivorID, mergedID)

	// Both signals resolve to the survivor afterwards.
	byFP, _ := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1"})
	byFB, _ := r.Resolve(ctx, domain.IdentitySignals{FallbackID: "fb1"})
	assert.Equal(t, merged.IdentityID, byFP.IdentityID)
	assert.Equal(t, merged.IdentityID, byFB.IdentityID)

	// The merged id still resolves through its alias.
	id, err := r.Lookup(mergedID)
	assert.NoError(t, err)
	assert.Equal(t, survivorID, id.IdentityID)

	// The survivor's fallback set carries the merged identity's ids.
	assert.Contains(t, id.FallbackIDs, "fb1")
	assert.Len(t, id.MergeHistory, 1)
	assert.Equal(t, mergedID, id.MergeHistory[0].MergedID)
}

func TestResolver_Lookup_Unknown(t *testing.T) {
	r, _ := newTestResolver()

	_, err := r.Lookup("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolver_Anonymize(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	res, _ := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1", FallbackID: "fb1"})

	assert.NoError(t, r.Anonymize(ctx, res.IdentityID))

	id, err := r.Lookup(res.IdentityID)
	assert.NoError(t, err)
	assert.True(t, id.Anonymized)
	assert.Empty(t, id.Fingerprint)
	assert.Empty(t, id.FallbackIDs)

	// Stripped signals resolve to a fresh identity.
	again, _ := r.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1"})
	assert.NotEqual(t, res.IdentityID, again.IdentityID)
	assert.Equal(t, domain.MatchNew, again.Confidence)
}

// sharedIdentityStore is an in-memory Store two resolvers can share, the way
// the api and pipeline binaries share Postgres.
type sharedIdentityStore struct {
	rows map[string]*domain.Identity
}

func newSharedIdentityStore() *sharedIdentityStore {
	return &sharedIdentityStore{rows: make(map[string]*domain.Identity)}
}

func (s *sharedIdentityStore) Save(_ context.Context, id *domain.Identity) error {
	cp := *id
	s.rows[id.IdentityID] = &cp
	return nil
}

func (s *sharedIdentityStore) All(_ context.Context) ([]*domain.Identity, error) {
	out := make([]*domain.Identity, 0, len(s.rows))
	for _, id := range s.rows {
		cp := *id
		out = append(out, &cp)
	}
	return out, nil
}

func (s *sharedIdentityStore) ByFingerprint(_ context.Context, fingerprint string) (*domain.Identity, error) {
	for _, id := range s.rows {
		if id.Fingerprint == fingerprint {
			cp := *id
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *sharedIdentityStore) ByFallback(_ context.Context, fallbackID string) (*domain.Identity, error) {
	for _, id := range s.rows {
		for _, fb := range id.FallbackIDs {
			if fb == fallbackID {
				cp := *id
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func TestResolver_Resolve_FindsIdentityMintedByOtherProcess(t *testing.T) {
	store := newSharedIdentityStore()
	ctx := context.Background()

	// Both binaries warm their index before the visitor exists.
	apiSide := NewResolver(store, zap.NewNop())
	pipelineSide := NewResolver(store, zap.NewNop())
	assert.NoError(t, apiSide.Warm(ctx))
	assert.NoError(t, pipelineSide.Warm(ctx))

	// The consent submission mints the identity on the api side.
	consented, err := apiSide.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1", SessionID: "s1"})
	assert.NoError(t, err)
	assert.Equal(t, domain.MatchNew, consented.Confidence)

	// The pipeline side must resolve the same visitor to the same identity,
	// not mint a second one.
	event, err := pipelineSide.Resolve(ctx, domain.IdentitySignals{Fingerprint: "fp1", SessionID: "s1"})
	assert.NoError(t, err)
	assert.Equal(t, consented.IdentityID, event.IdentityID)
	assert.Equal(t, domain.MatchExact, event.Confidence)
}

func TestResolver_Resolve_FallbackFindsIdentityMintedByOtherProcess(t *testing.T) {
	store := newSharedIdentityStore()
	ctx := context.Background()

	apiSide := NewResolver(store, zap.NewNop())
	pipelineSide := NewResolver(store, zap.NewNop())
	assert.NoError(t, apiSide.Warm(ctx))
	assert.NoError(t, pipelineSide.Warm(ctx))

	consented, err := apiSide.Resolve(ctx, domain.IdentitySignals{FallbackID: "fb1"})
	assert.NoError(t, err)

	event, err := pipelineSide.Resolve(ctx, domain.IdentitySignals{FallbackID: "fb1"})
	assert.NoError(t, err)
	assert.Equal(t, consented.IdentityID, event.IdentityID)
	assert.Equal(t, domain.MatchFallback, event.Confidence)
}

func TestResolver_Warm(t *testing.T) {
	store := new(MockIdentityStore)
	store.On("All", mock.Anything).Return([]*domain.Identity{
		{IdentityID: "id1", Fingerprint: "fp1", FallbackIDs: []string{"fb1"}},
	}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	r := NewResolver(store, zap.NewNop())
	assert.NoError(t, r.Warm(context.Background()))

	res, err := r.Resolve(context.Background(), domain.IdentitySignals{Fingerprint: "fp1"})
	assert.NoError(t, err)
	assert.Equal(t, "id1", res.IdentityID)
	assert.Equal(t, domain.MatchExact, res.Confidence)
}
