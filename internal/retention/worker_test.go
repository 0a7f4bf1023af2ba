package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository"
)

// MockAnonymizationQueue is a mock implementation of retention.AnonymizationQueue
type MockAnonymizationQueue struct {
	mock.Mock
}

func (m *MockAnonymizationQueue) DueAnonymizations(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAnonymizationQueue) MarkAnonymized(ctx context.Context, identityID string) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

// MockProfileAnonymizer is a mock implementation of retention.ProfileAnonymizer
type MockProfileAnonymizer struct {
	mock.Mock
}

func (m *MockProfileAnonymizer) Anonymize(identityID string, at time.Time) {
	m.Called(identityID, at)
}

// MockIdentityAnonymizer is a mock implementation of retention.IdentityAnonymizer
type MockIdentityAnonymizer struct {
	mock.Mock
}

func (m *MockIdentityAnonymizer) Anonymize(ctx context.Context, identityID string) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

// MockEventRepository is a mock implementation of repository.EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) InsertBatch(ctx context.Context, events []*domain.Event) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockEventRepository) EventsForIdentity(ctx context.Context, identityID string, from, to int64) ([]*domain.Event, error) {
	args := m.Called(ctx, identityID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

func (m *MockEventRepository) StageReach(ctx context.Context, from, to int64) (repository.StageReachResult, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.StageReachResult), args.Error(1)
}

func (m *MockEventRepository) ScrubIdentity(ctx context.Context, identityID string) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

func (m *MockEventRepository) DeleteOlderThan(ctx context.Context, before int64) error {
	args := m.Called(ctx, before)
	return args.Error(0)
}

func (m *MockEventRepository) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestWorker(queue *MockAnonymizationQueue, profiles *MockProfileAnonymizer, identities *MockIdentityAnonymizer, repo *MockEventRepository) *Worker {
	return NewWorker(queue, profiles, identities, repo, WorkerConfig{
		SweepInterval:  time.Minute,
		EventRetention: 395 * 24 * time.Hour,
	}, zap.NewNop())
}

func TestWorker_Sweep_AnonymizesDueIdentities(t *testing.T) {
	queue := new(MockAnonymizationQueue)
	profiles := new(MockProfileAnonymizer)
	identities := new(MockIdentityAnonymizer)
	repo := new(MockEventRepository)

	queue.On("DueAnonymizations", mock.Anything, mock.Anything).Return([]string{"id1"}, nil)
	repo.On("ScrubIdentity", mock.Anything, "id1").Return(nil)
	identities.On("Anonymize", mock.Anything, "id1").Return(nil)
	profiles.On("Anonymize", "id1", mock.Anything)
	queue.On("MarkAnonymized", mock.Anything, "id1").Return(nil)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(nil)

	w := newTestWorker(queue, profiles, identities, repo)
	w.Sweep(context.Background())

	repo.AssertCalled(t, "ScrubIdentity", mock.Anything, "id1")
	identities.AssertCalled(t, "Anonymize", mock.Anything, "id1")
	profiles.AssertCalled(t, "Anonymize", "id1", mock.Anything)
	queue.AssertCalled(t, "MarkAnonymized", mock.Anything, "id1")
	repo.AssertCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything)
}

func TestWorker_Sweep_ScrubFailureKeepsQueueEntry(t *testing.T) {
	queue := new(MockAnonymizationQueue)
	profiles := new(MockProfileAnonymizer)
	identities := new(MockIdentityAnonymizer)
	repo := new(MockEventRepository)

	queue.On("DueAnonymizations", mock.Anything, mock.Anything).Return([]string{"id1"}, nil)
	repo.On("ScrubIdentity", mock.Anything, "id1").Return(assert.AnError)
	identities.On("Anonymize", mock.Anything, "id1").Return(nil)
	profiles.On("Anonymize", "id1", mock.Anything)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(nil)

	w := newTestWorker(queue, profiles, identities, repo)
	w.Sweep(context.Background())

	// Every store is still attempted, but the entry stays for the next sweep.
	identities.AssertCalled(t, "Anonymize", mock.Anything, "id1")
	profiles.AssertCalled(t, "Anonymize", "id1", mock.Anything)
	queue.AssertNotCalled(t, "MarkAnonymized", mock.Anything, mock.Anything)
}

func TestWorker_Sweep_UnknownIdentityStillCompletes(t *testing.T) {
	queue := new(MockAnonymizationQueue)
	profiles := new(MockProfileAnonymizer)
	identities := new(MockIdentityAnonymizer)
	repo := new(MockEventRepository)

	queue.On("DueAnonymizations", mock.Anything, mock.Anything).Return([]string{"id1"}, nil)
	repo.On("ScrubIdentity", mock.Anything, "id1").Return(nil)
	identities.On("Anonymize", mock.Anything, "id1").Return(domain.ErrNotFound)
	profiles.On("Anonymize", "id1", mock.Anything)
	queue.On("MarkAnonymized", mock.Anything, "id1").Return(nil)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(nil)

	w := newTestWorker(queue, profiles, identities, repo)
	w.Sweep(context.Background())

	// An identity absent from the index has nothing left to strip.
	queue.AssertCalled(t, "MarkAnonymized", mock.Anything, "id1")
}

func TestWorker_Sweep_QueueErrorStillEnforcesRetention(t *testing.T) {
	queue := new(MockAnonymizationQueue)
	profiles := new(MockProfileAnonymizer)
	identities := new(MockIdentityAnonymizer)
	repo := new(MockEventRepository)

	queue.On("DueAnonymizations", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(nil)

	w := newTestWorker(queue, profiles, identities, repo)
	w.Sweep(context.Background())

	repo.AssertCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything)
	queue.AssertNotCalled(t, "MarkAnonymized", mock.Anything, mock.Anything)
}

func TestWorker_Sweep_RetentionCutoff(t *testing.T) {
	queue := new(MockAnonymizationQueue)
	profiles := new(MockProfileAnonymizer)
	identities := new(MockIdentityAnonymizer)
	repo := new(MockEventRepository)

	retention := 10 * 24 * time.Hour
	queue.On("DueAnonymizations", mock.Anything, mock.Anything).Return([]string{}, nil)

	var cutoff int64
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cutoff = args.Get(1).(int64)
	}).Return(nil)

	w := NewWorker(queue, profiles, identities, repo, WorkerConfig{
		SweepInterval:  time.Minute,
		EventRetention: retention,
	}, zap.NewNop())
	w.Sweep(context.Background())

	want := time.Now().UTC().Add(-retention).Unix()
	assert.InDelta(t, want, cutoff, 5)
}
