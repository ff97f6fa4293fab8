package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-api/internal/model"
)

// Tx is a claim transaction for outbox dispatch, created by
// OutboxRepository.BeginTx and passed back into the *Tx methods.
type Tx interface {
	Commit() error
	Rollback() error
}

// All repository interfaces in one file
type (
	// TxManager runs fn inside a single database transaction.
	// Repository calls made with the context passed to fn join that
	// transaction; fn returning an error rolls everything back.
	TxManager interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// Update persists the aggregate with an optimistic version
		// check and bumps Version on success. A version mismatch
		// surfaces as a ConcurrencyConflict error.
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// FindOverlapping returns the doctor's non-cancelled
		// appointments whose window intersects [start, end),
		// excluding excludeID when non-nil.
		FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)
		// ListForDoctor returns the doctor's non-cancelled
		// appointments inside [from, to), ordered by start.
		ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		BeginTx(ctx context.Context) (Tx, error)
		// GetPendingEventsWithLock claims a batch of pending/retry
		// rows with FOR UPDATE SKIP LOCKED. Must run inside tx so the
		// claims hold until the batch is marked.
		GetPendingEventsWithLock(ctx context.Context, tx Tx, limit int) ([]*model.OutboxEvent, error)
		UpdateStatusTx(ctx context.Context, tx Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		MarkRetryTx(ctx context.Context, tx Tx, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MoveToDeadLetterTx(ctx context.Context, tx Tx, event *model.OutboxEvent, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
