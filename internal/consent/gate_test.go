package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// MockConsentStore is a mock implementation of consent.Store
type MockConsentStore struct {
	mock.Mock
}

func (m *MockConsentStore) Upsert(ctx context.Context, rec *domain.ConsentRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockConsentStore) Get(ctx context.Context, identityID string) (*domain.ConsentRecord, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConsentRecord), args.Error(1)
}

func (m *MockConsentStore) BindKey(ctx context.Context, signalKey, identityID string) error {
	args := m.Called(ctx, signalKey, identityID)
	return args.Error(0)
}

func (m *MockConsentStore) IdentityForKey(ctx context.Context, signalKey string) (string, error) {
	args := m.Called(ctx, signalKey)
	return args.String(0), args.Error(1)
}

func (m *MockConsentStore) ScheduleAnonymization(ctx context.Context, identityID string, due time.Time) error {
	args := m.Called(ctx, identityID, due)
	return args.Error(0)
}

// MockConsentCache is a mock implementation of consent.Cache
type MockConsentCache struct {
	mock.Mock
}

func (m *MockConsentCache) GetConsent(ctx context.Context, identityID string) (*domain.ConsentRecord, bool, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ConsentRecord), args.Bool(1), args.Error(2)
}

func (m *MockConsentCache) SetConsent(ctx context.Context, rec *domain.ConsentRecord, ttl time.Duration) error {
	args := m.Called(ctx, rec, ttl)
	return args.Error(0)
}

func (m *MockConsentCache) InvalidateConsent(ctx context.Context, identityID string) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

// MockResolver is a mock implementation of consent.Resolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, signals domain.IdentitySignals) (domain.Resolution, error) {
	args := m.Called(ctx, signals)
	return args.Get(0).(domain.Resolution), args.Error(1)
}

func newTestGate(store *MockConsentStore, cache *MockConsentCache, resolver *MockResolver) *Gate {
	return NewGate(store, cache, resolver, GateConfig{}, zap.NewNop())
}

func TestGate_Check_GrantedCategory(t *testing.T) {
	store := new(MockConsentStore)
	cache := new(MockConsentCache)

	rec := &domain.ConsentRecord{
		IdentityID:  "id1",
		Preferences: domain.ConsentPreferences{Analytics: true},
	}
	cache.On("GetConsent", mock.Anything, "id1").Return(nil, false, nil)
	store.On("Get", mock.Anything, "id1").Return(rec, nil)
	cache.On("SetConsent", mock.Anything, rec, mock.Anything).Return(nil)

	gate := newTestGate(store, cache, new(MockResolver))

	assert.True(t, gate.Check(context.Background(), "id1", domain.ConsentAnalytics))
	assert.False(t, gate.Check(context.Background(), "id1", domain.ConsentMarketing))
	cache.AssertExpectations(t)
}

func TestGate_Check_NoRecordFailsClosed(t *testing.T) {
	store := new(MockConsentStore)
	cache := new(MockConsentCache)

	cache.On("GetConsent", mock.Anything, "id1").Return(nil, false, nil)
	store.On("Get", mock.Anything, "id1").Return(nil, domain.ErrNotFound)

	gate := newTestGate(store, cache, new(MockResolver))

	assert.False(t, gate.Check(context.Background(), "id1", domain.ConsentAnalytics))
}

func TestGate_Check_StoreErrorFailsClosed(t *testing.T) {
	store := new(MockConsentStore)
	cache := new(MockConsentCache)

	cache.On("GetConsent", mock.Anything, "id1").Return(nil, false, nil)
	store.On("Get", mock.Anything, "id1").Return(nil, errors.New("connection refused"))

	gate := newTestGate(store, cache, new(MockResolver))

	assert.False(t, gate.Check(context.Background(), "id1", domain.ConsentAnalytics))
}

func TestGate_Check_RevokedDeniesEverything(t *testing.T) {
	store := new(MockConsentStore)
	cache := new(MockConsentCache)

	rec := &domain.ConsentRecord{
		IdentityID:  "id1",
		Preferences: domain.ConsentPreferences{Analytics: true, Marketing: true},
		Revoked:     true,
	}
	cache.On("GetConsent", mock.Anything, "id1").Return(rec, true, nil)

	gate := newTestGate(store, cache, new(MockResolver))

	assert.False(t, gate.Check(context.Background(), "id1", domain.ConsentAnalytics))
	assert.False(t, gate.Check(context.Background(), "id1", domain.ConsentMarketing))
}

func TestGate_CheckSignals_NoSignalsFailsClosed(t *testing.T) {
	gate := newTestGate(new(MockConsentStore), new(MockConsentCache), new(MockResolver))

	_, allowed := gate.CheckSignals(context.Background(), domain.IdentitySignals{}, domain.ConsentAnalytics)
	assert.False(t, allowed)
}

func TestGate_CheckSignals_UnknownKeyFailsClosed(t *testing.T) {
	store := new(MockConsentStore)
	store.On("IdentityForKey", mock.Anything, "fp:fp1").Return("", domain.ErrNotFound)

	gate := newTestGate(store, new(MockConsentCache), new(MockResolver))

	_, allowed := gate.CheckSignals(context.Background(), domain.IdentitySignals{Fingerprint: "fp1"}, domain.ConsentAnalytics)
	assert.False(t, allowed)
}

func TestGate_CheckSignals_BoundKeyChecksRecord(t *testing.T) {
	store := new(MockConsentStore)
	cache := new(MockConsentCache)

	rec := &domain.ConsentRecord{
		IdentityID:  "id1",
		Preferences: domain.ConsentPreferences{Analytics: true},
	}
	store.On("IdentityForKey", mock.Anything, "fp:fp1").Return("id1", nil)
	cache.On("GetConsent", mock.Anything, "id1").Return(rec, true, nil)

	gate := newTestGate(store, cache, new(MockResolver))

	identityID, allowed := gate.CheckSignals(context.Background(), domain.IdentitySignals{Fingerprint: "fp1"}, domain.ConsentAnalytics)
	assert.True(t, allowed)
	assert.Equal(t, "id1", identityID)
}

func TestGate_Record_BindsAllSignalKeys(t *testing.T) {
	store := new(MockConsentStore)
	cache := new(MockConsentCache)
	resolver := new(MockResolver)

	signals := domain.IdentitySignals{Fingerprint: "fp1", FallbackID: "fb1", SessionID: "s1"}
	resolver.On("Resolve", mock.Anything, signals).Return(domain.Resolution{IdentityID: "id1", Confidence: domain.MatchNew}, nil)
	store.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	store.On("BindKey", mock.Anything, "fp:fp1", "id1").Return(nil)
	store.On("BindKey", mock.Anything, "fb:fb1", "id1").Return(nil)
	store.On("BindKey", mock.Anything, "sess:s1", "id1").Return(nil)
	cache.On("InvalidateConsent", mock.Anything, "id1").Return(nil)

	gate := newTestGate(store, cache, resolver)

	rec, err := gate.Record(context.Background(), signals, domain.ConsentPreferences{Analytics: true})
	assert.NoError(t, err)
	assert.Equal(t, "id1", rec.IdentityID)
	assert.True(t, rec.Preferences.Analytics)
	store.AssertExpectations(t)
}

func TestGate_Revoke_SchedulesAnonymization(t *testing.T) {
	store := new(MockConsentStore)
	cache := new(MockConsentCache)

	store.On("Upsert", mock.Anything, mock.MatchedBy(func(rec *domain.ConsentRecord) bool {
		return rec.Revoked && !rec.Preferences.Analytics && !rec.Preferences.Marketing
	})).Return(nil)
	cache.On("InvalidateConsent", mock.Anything, "id1").Return(nil)
	store.On("ScheduleAnonymization", mock.Anything, "id1", mock.Anything).Return(nil)

	gate := newTestGate(store, cache, new(MockResolver))

	assert.NoError(t, gate.Revoke(context.Background(), "id1"))
	store.AssertExpectations(t)
}

func TestSignalKey_Priority(t *testing.T) {
	assert.Equal(t, "fp:a", SignalKey(domain.IdentitySignals{Fingerprint: "a", FallbackID: "b", SessionID: "c"}))
	assert.Equal(t, "fb:b", SignalKey(domain.IdentitySignals{FallbackID: "b", SessionID: "c"}))
	assert.Equal(t, "sess:c", SignalKey(domain.IdentitySignals{SessionID: "c"}))
	assert.Equal(t, "", SignalKey(domain.IdentitySignals{}))
}
