package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
)

type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockOutboxRepository) GetPendingEventsWithLock(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if events := args.Get(0); events != nil {
		return events.([]*model.OutboxEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxRepository) BeginTx(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repository.Tx), args.Error(1)
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

func TestRecord(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	t.Run("writes one row per event in order", func(t *testing.T) {
		repo := new(mockOutboxRepository)
		svc := NewService(repo)

		apptID := uuid.New()
		booked := model.AppointmentBooked{
			AppointmentID: apptID,
			PatientID:     uuid.New(),
			DoctorID:      uuid.New(),
			StartUTC:      now.Add(24 * time.Hour),
			EndUTC:        now.Add(25 * time.Hour),
			Timestamp:     now,
		}
		cancelled := model.AppointmentCancelled{
			AppointmentID: apptID,
			Timestamp:     now.Add(time.Minute),
		}

		var recorded []*model.OutboxEvent
		repo.On("Create", mock.Anything, mock.AnythingOfType("*model.OutboxEvent")).
			Run(func(args mock.Arguments) {
				recorded = append(recorded, args.Get(1).(*model.OutboxEvent))
			}).
			Return(nil).Twice()

		err := svc.Record(context.Background(), booked, cancelled)
		require.NoError(t, err)
		repo.AssertExpectations(t)

		require.Len(t, recorded, 2)
		assert.Equal(t, model.EventTypeAppointmentBooked, recorded[0].EventType)
		assert.Equal(t, model.EventTypeAppointmentCancelled, recorded[1].EventType)
		assert.Equal(t, apptID, recorded[0].AggregateID)

		var payload model.AppointmentBooked
		require.NoError(t, json.Unmarshal(recorded[0].Payload, &payload))
		assert.Equal(t, booked.AppointmentID, payload.AppointmentID)
		assert.True(t, payload.StartUTC.Equal(booked.StartUTC))
	})

	t.Run("stops at first failing insert", func(t *testing.T) {
		repo := new(mockOutboxRepository)
		svc := NewService(repo)

		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed")).Once()

		err := svc.Record(context.Background(),
			model.AppointmentBooked{AppointmentID: uuid.New(), Timestamp: now},
			model.AppointmentCompleted{AppointmentID: uuid.New(), Timestamp: now},
		)
		assert.Error(t, err)
		repo.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("no events is a no-op", func(t *testing.T) {
		repo := new(mockOutboxRepository)
		svc := NewService(repo)

		assert.NoError(t, svc.Record(context.Background()))
		repo.AssertNotCalled(t, "Create")
	})
}
