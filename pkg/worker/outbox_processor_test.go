package worker

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
	"github.com/clinicore/scheduling-api/pkg/logger"
	"github.com/clinicore/scheduling-api/pkg/messaging"
	"github.com/clinicore/scheduling-api/pkg/metrics"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockOutboxRepository) BeginTx(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repository.Tx), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxRepository) GetPendingEventsWithLock(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if events := args.Get(0); events != nil {
		return events.([]*model.OutboxEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxRepository) UpdateStatusTx(ctx context.Context, tx repository.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	args := m.Called(ctx, tx, id, status, errorMessage, retryAt)
	return args.Error(0)
}

func (m *mockOutboxRepository) MarkRetryTx(ctx context.Context, tx repository.Tx, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	args := m.Called(ctx, tx, id, errorMessage, retryAt)
	return args.Error(0)
}

func (m *mockOutboxRepository) MoveToDeadLetterTx(ctx context.Context, tx repository.Tx, event *model.OutboxEvent, errorMessage string) error {
	args := m.Called(ctx, tx, event, errorMessage)
	return args.Error(0)
}

func (m *mockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	args := m.Called(ctx, channel, payload)
	return args.Error(0)
}

func (m *mockBroker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockBroker) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		Channel:      "appointments",
		BatchSize:    10,
		PollInterval: time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Minute,
	}
}

func newTestProcessor(t *testing.T) (*OutboxProcessor, *mockOutboxRepository, *mockBroker) {
	t.Helper()
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)
	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	p := NewOutboxProcessor(repo, broker, testConfig(), log, metrics.NewMetrics(prometheus.NewRegistry(), "test"))
	return p, repo, broker
}

func pendingEvent(retries int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: uuid.New(),
		EventType:   model.EventTypeAppointmentBooked,
		Payload:     json.RawMessage(`{"appointment_id":"abc"}`),
		Status:      model.OutboxStatusPending,
		RetryCount:  retries,
		CreatedAt:   time.Now().UTC().Add(-time.Minute),
	}
}

func TestProcessBatch(t *testing.T) {
	t.Run("publishes and marks processed", func(t *testing.T) {
		p, repo, broker := newTestProcessor(t)
		tx := &fakeTx{}
		events := []*model.OutboxEvent{pendingEvent(0), pendingEvent(0)}

		repo.On("BeginTx", mock.Anything).Return(tx, nil)
		repo.On("GetPendingEventsWithLock", mock.Anything, tx, 10).Return(events, nil)

		var published []messaging.Message
		broker.On("Publish", mock.Anything, "appointments", mock.Anything).
			Run(func(args mock.Arguments) {
				var msg messaging.Message
				require.NoError(t, json.Unmarshal(args.Get(2).([]byte), &msg))
				published = append(published, msg)
			}).
			Return(nil)
		repo.On("UpdateStatusTx", mock.Anything, tx, mock.Anything, model.OutboxStatusProcessed, (*string)(nil), (*time.Time)(nil)).
			Return(nil)

		require.NoError(t, p.processBatch(context.Background()))

		repo.AssertNumberOfCalls(t, "UpdateStatusTx", 2)
		require.Len(t, published, 2)
		assert.Equal(t, events[0].ID, published[0].ID)
		assert.Equal(t, model.EventTypeAppointmentBooked, published[0].Type)
		assert.JSONEq(t, string(events[0].Payload), string(published[0].Payload))
		assert.True(t, tx.committed, "claim transaction must commit")
	})

	t.Run("empty batch commits nothing", func(t *testing.T) {
		p, repo, broker := newTestProcessor(t)
		tx := &fakeTx{}

		repo.On("BeginTx", mock.Anything).Return(tx, nil)
		repo.On("GetPendingEventsWithLock", mock.Anything, tx, 10).Return([]*model.OutboxEvent{}, nil)

		require.NoError(t, p.processBatch(context.Background()))

		broker.AssertNotCalled(t, "Publish")
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack)
	})

	t.Run("failed publish schedules retry", func(t *testing.T) {
		p, repo, broker := newTestProcessor(t)
		tx := &fakeTx{}
		event := pendingEvent(0)

		repo.On("BeginTx", mock.Anything).Return(tx, nil)
		repo.On("GetPendingEventsWithLock", mock.Anything, tx, 10).Return([]*model.OutboxEvent{event}, nil)
		broker.On("Publish", mock.Anything, "appointments", mock.Anything).Return(assert.AnError)
		repo.On("MarkRetryTx", mock.Anything, tx, event.ID, assert.AnError.Error(), mock.Anything).Return(nil)

		require.NoError(t, p.processBatch(context.Background()))

		repo.AssertCalled(t, "MarkRetryTx", mock.Anything, tx, event.ID, assert.AnError.Error(), mock.Anything)
		repo.AssertNotCalled(t, "MoveToDeadLetterTx")
		assert.True(t, tx.committed, "retry bookkeeping must still commit")
	})

	t.Run("exhausted retries dead letter the event", func(t *testing.T) {
		p, repo, broker := newTestProcessor(t)
		tx := &fakeTx{}
		event := pendingEvent(2) // third attempt of three

		repo.On("BeginTx", mock.Anything).Return(tx, nil)
		repo.On("GetPendingEventsWithLock", mock.Anything, tx, 10).Return([]*model.OutboxEvent{event}, nil)
		broker.On("Publish", mock.Anything, "appointments", mock.Anything).Return(assert.AnError)
		repo.On("MoveToDeadLetterTx", mock.Anything, tx, event, assert.AnError.Error()).Return(nil)

		require.NoError(t, p.processBatch(context.Background()))

		repo.AssertNotCalled(t, "MarkRetryTx")
		repo.AssertCalled(t, "MoveToDeadLetterTx", mock.Anything, tx, event, assert.AnError.Error())
	})

	t.Run("one failure does not block the batch", func(t *testing.T) {
		p, repo, broker := newTestProcessor(t)
		tx := &fakeTx{}
		bad := pendingEvent(0)
		good := pendingEvent(0)

		repo.On("BeginTx", mock.Anything).Return(tx, nil)
		repo.On("GetPendingEventsWithLock", mock.Anything, tx, 10).
			Return([]*model.OutboxEvent{bad, good}, nil)

		broker.On("Publish", mock.Anything, "appointments", mock.Anything).Return(assert.AnError).Once()
		broker.On("Publish", mock.Anything, "appointments", mock.Anything).Return(nil).Once()

		repo.On("MarkRetryTx", mock.Anything, tx, bad.ID, mock.Anything, mock.Anything).Return(nil)
		repo.On("UpdateStatusTx", mock.Anything, tx, good.ID, model.OutboxStatusProcessed, (*string)(nil), (*time.Time)(nil)).Return(nil)

		require.NoError(t, p.processBatch(context.Background()))
		repo.AssertExpectations(t)
	})
}

func TestBackoff(t *testing.T) {
	p, _, _ := newTestProcessor(t)

	assert.Equal(t, time.Minute, p.backoff(0))
	assert.Equal(t, 2*time.Minute, p.backoff(1))
	assert.Equal(t, 4*time.Minute, p.backoff(2))
	assert.Equal(t, maxRetryBackoff, p.backoff(20), "backoff is capped")
}

func TestNewOutboxProcessorValidation(t *testing.T) {
	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")

	cfg := testConfig()
	cfg.BatchSize = 0
	assert.Panics(t, func() {
		NewOutboxProcessor(new(mockOutboxRepository), new(mockBroker), cfg, log, m)
	})

	cfg = testConfig()
	cfg.Channel = ""
	assert.Panics(t, func() {
		NewOutboxProcessor(new(mockOutboxRepository), new(mockBroker), cfg, log, m)
	})
}
