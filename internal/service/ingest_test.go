package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/dto"
)

const (
	testCurrentTime int64 = 1766702551
	testFutureTime  int64 = 2556144000
)

// MockQueuePublisher is a mock implementation of queue.QueuePublisher
type MockQueuePublisher struct {
	mock.Mock
}

func (m *MockQueuePublisher) PublishEvent(ctx context.Context, event *domain.InboundEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockDedupeStore is a mock implementation of service.DedupeStore
type MockDedupeStore struct {
	mock.Mock
}

func (m *MockDedupeStore) Seen(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDedupeStore) MarkSeen(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

// fakeDedupeWindow behaves like the hot-key store: ids enter the window only
// through MarkSeen.
type fakeDedupeWindow struct {
	seen map[string]bool
}

func newFakeDedupeWindow() *fakeDedupeWindow {
	return &fakeDedupeWindow{seen: make(map[string]bool)}
}

func (f *fakeDedupeWindow) Seen(_ context.Context, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeDedupeWindow) MarkSeen(_ context.Context, eventID string) error {
	f.seen[eventID] = true
	return nil
}

// MockConsentGate is a mock implementation of service.ConsentGate
type MockConsentGate struct {
	mock.Mock
}

func (m *MockConsentGate) CheckSignals(ctx context.Context, signals domain.IdentitySignals, category domain.ConsentCategory) (string, bool) {
	args := m.Called(ctx, signals, category)
	return args.String(0), args.Bool(1)
}

func validRequest() *dto.IngestEventRequest {
	return &dto.IngestEventRequest{
		EventID:    "evt_1",
		Signals:    dto.IdentitySignals{Fingerprint: "fp1", SessionID: "s1"},
		EventType:  "page_view",
		Payload:    json.RawMessage(`{"path":"/services"}`),
		OccurredAt: testCurrentTime,
	}
}

func newTestService(pub *MockQueuePublisher, dedupe *MockDedupeStore, gate *MockConsentGate) *IngestService {
	return NewIngestService(pub, dedupe, gate, IngestConfig{}, zap.NewNop())
}

func TestIngestService_Ingest_Accepted(t *testing.T) {
	pub := new(MockQueuePublisher)
	dedupe := new(MockDedupeStore)
	gate := new(MockConsentGate)

	dedupe.On("Seen", mock.Anything, "evt_1").Return(false, nil)
	dedupe.On("MarkSeen", mock.Anything, "evt_1").Return(nil)
	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("id1", true)
	pub.On("PublishEvent", mock.Anything, mock.MatchedBy(func(e *domain.InboundEvent) bool {
		return e.EventID == "evt_1" && e.Type == domain.EventPageView
	})).Return(nil)

	svc := newTestService(pub, dedupe, gate)
	result := svc.Ingest(context.Background(), validRequest())

	assert.Equal(t, dto.StatusAccepted, result.Status)
	pub.AssertExpectations(t)
	dedupe.AssertCalled(t, "MarkSeen", mock.Anything, "evt_1")
}

func TestIngestService_Ingest_DuplicateWithinWindow(t *testing.T) {
	pub := new(MockQueuePublisher)
	dedupe := new(MockDedupeStore)
	gate := new(MockConsentGate)

	dedupe.On("Seen", mock.Anything, "evt_1").Return(true, nil)

	svc := newTestService(pub, dedupe, gate)
	result := svc.Ingest(context.Background(), validRequest())

	assert.Equal(t, dto.StatusDeduplicated, result.Status)
	pub.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything)
}

func TestIngestService_Ingest_UnknownTypeRejected(t *testing.T) {
	svc := newTestService(new(MockQueuePublisher), new(MockDedupeStore), new(MockConsentGate))

	req := validRequest()
	req.EventType = "mouse_move"

	result := svc.Ingest(context.Background(), req)

	assert.Equal(t, dto.StatusRejected, result.Status)
	assert.Contains(t, result.Reason, "unknown event type")
}

func TestIngestService_Ingest_MalformedPayloadRejected(t *testing.T) {
	svc := newTestService(new(MockQueuePublisher), new(MockDedupeStore), new(MockConsentGate))

	req := validRequest()
	req.Payload = json.RawMessage(`{"path":`)

	result := svc.Ingest(context.Background(), req)

	assert.Equal(t, dto.StatusRejected, result.Status)
}

func TestIngestService_Ingest_FutureTimestampRejected(t *testing.T) {
	svc := newTestService(new(MockQueuePublisher), new(MockDedupeStore), new(MockConsentGate))

	req := validRequest()
	req.OccurredAt = testFutureTime

	result := svc.Ingest(context.Background(), req)

	assert.Equal(t, dto.StatusRejected, result.Status)
	assert.Contains(t, result.Reason, "future")
}

func TestIngestService_Ingest_ConsentDeniedRejected(t *testing.T) {
	pub := new(MockQueuePublisher)
	dedupe := new(MockDedupeStore)
	gate := new(MockConsentGate)

	dedupe.On("Seen", mock.Anything, "evt_1").Return(false, nil)
	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("", false)

	svc := newTestService(pub, dedupe, gate)
	result := svc.Ingest(context.Background(), validRequest())

	assert.Equal(t, dto.StatusRejected, result.Status)
	pub.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything)
}

func TestIngestService_Ingest_DedupeStoreDownStillAccepts(t *testing.T) {
	pub := new(MockQueuePublisher)
	dedupe := new(MockDedupeStore)
	gate := new(MockConsentGate)

	dedupe.On("Seen", mock.Anything, "evt_1").Return(false, errors.New("connection refused"))
	dedupe.On("MarkSeen", mock.Anything, "evt_1").Return(errors.New("connection refused"))
	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("id1", true)
	pub.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(pub, dedupe, gate)
	result := svc.Ingest(context.Background(), validRequest())

	assert.Equal(t, dto.StatusAccepted, result.Status)
}

func TestIngestService_Ingest_PublishFailureSheds(t *testing.T) {
	pub := new(MockQueuePublisher)
	dedupe := new(MockDedupeStore)
	gate := new(MockConsentGate)

	dedupe.On("Seen", mock.Anything, "evt_1").Return(false, nil)
	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("id1", true)
	pub.On("PublishEvent", mock.Anything, mock.Anything).Return(errors.New("queue unavailable"))

	svc := newTestService(pub, dedupe, gate)
	result := svc.Ingest(context.Background(), validRequest())

	assert.Equal(t, dto.StatusShed, result.Status)
	assert.Greater(t, result.RetryAfterSec, 0)
	dedupe.AssertNotCalled(t, "MarkSeen", mock.Anything, mock.Anything)
}

func TestIngestService_Ingest_ShedThenRetryIsAccepted(t *testing.T) {
	pub := new(MockQueuePublisher)
	gate := new(MockConsentGate)
	dedupe := newFakeDedupeWindow()

	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("id1", true)
	pub.On("PublishEvent", mock.Anything, mock.Anything).Return(errors.New("queue unavailable")).Once()
	pub.On("PublishEvent", mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewIngestService(pub, dedupe, gate, IngestConfig{}, zap.NewNop())

	// First attempt sheds; the instructed retry must not come back
	// deduplicated.
	first := svc.Ingest(context.Background(), validRequest())
	assert.Equal(t, dto.StatusShed, first.Status)

	second := svc.Ingest(context.Background(), validRequest())
	assert.Equal(t, dto.StatusAccepted, second.Status)

	// Only the accepted attempt opened the window.
	third := svc.Ingest(context.Background(), validRequest())
	assert.Equal(t, dto.StatusDeduplicated, third.Status)
	pub.AssertNumberOfCalls(t, "PublishEvent", 2)
}

func TestIngestService_Ingest_ConsentDenialDoesNotPoisonRetry(t *testing.T) {
	pub := new(MockQueuePublisher)
	gate := new(MockConsentGate)
	dedupe := newFakeDedupeWindow()

	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("", false).Once()
	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("id1", true).Once()
	pub.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestService(pub, dedupe, gate, IngestConfig{}, zap.NewNop())

	first := svc.Ingest(context.Background(), validRequest())
	assert.Equal(t, dto.StatusRejected, first.Status)

	// Consent granted between attempts: the same event id must go through.
	second := svc.Ingest(context.Background(), validRequest())
	assert.Equal(t, dto.StatusAccepted, second.Status)
}

func TestIngestService_IngestBulk_IndependentVerdicts(t *testing.T) {
	pub := new(MockQueuePublisher)
	dedupe := new(MockDedupeStore)
	gate := new(MockConsentGate)

	dedupe.On("Seen", mock.Anything, "evt_1").Return(false, nil)
	dedupe.On("MarkSeen", mock.Anything, "evt_1").Return(nil)
	gate.On("CheckSignals", mock.Anything, mock.Anything, domain.ConsentAnalytics).Return("id1", true)
	pub.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	good := *validRequest()
	bad := *validRequest()
	bad.EventID = "evt_2"
	bad.EventType = "mouse_move"

	svc := newTestService(pub, dedupe, gate)
	results := svc.IngestBulk(context.Background(), []dto.IngestEventRequest{good, bad})

	assert.Len(t, results, 2)
	assert.Equal(t, dto.StatusAccepted, results[0].Status)
	assert.Equal(t, dto.StatusRejected, results[1].Status)
}
