package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinicore/scheduling-api/internal/model"
	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

// mapConstraintErr converts Postgres constraint violations into domain
// errors. The doctor-overlap exclusion constraint is the commit-time
// backstop behind the in-memory conflict check.
func mapConstraintErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "exclusion_violation":
			return apperrors.Conflict("doctor already has an appointment in this window")
		case "unique_violation":
			return apperrors.Conflict(pqErr.Detail)
		}
	}
	return err
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, start_utc, end_utc,
			status, notes, cancelled_utc, cancellation_reason,
			completed_utc, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.ext(ctx).ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.StartUTC,
		appointment.EndUTC,
		appointment.Status,
		appointment.Notes,
		appointment.CancelledUTC,
		appointment.CancellationReason,
		appointment.CompletedUTC,
		appointment.Version,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_utc, end_utc,
			   status, notes, cancelled_utc, cancellation_reason,
			   completed_utc, version, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := sqlx.GetContext(ctx, r.ext(ctx), &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// Update persists the aggregate guarded by the version it was loaded
// with. Zero affected rows means another writer got there first.
func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET start_utc = $1,
			end_utc = $2,
			status = $3,
			notes = $4,
			cancelled_utc = $5,
			cancellation_reason = $6,
			completed_utc = $7,
			version = version + 1,
			updated_at = $8
		WHERE id = $9 AND version = $10
	`
	result, err := r.ext(ctx).ExecContext(ctx, query,
		appointment.StartUTC,
		appointment.EndUTC,
		appointment.Status,
		appointment.Notes,
		appointment.CancelledUTC,
		appointment.CancellationReason,
		appointment.CompletedUTC,
		appointment.UpdatedAt,
		appointment.ID,
		appointment.Version,
	)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.ConcurrencyConflict()
	}

	appointment.Version++
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_utc, end_utc,
			   status, notes, cancelled_utc, cancellation_reason,
			   completed_utc, version, created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, *filters.DoctorID)
		argCount++
	}
	if filters.PatientID != nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, *filters.PatientID)
		argCount++
	}
	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.From != nil {
		query += fmt.Sprintf(" AND start_utc >= $%d", argCount)
		args = append(args, filters.From.UTC())
		argCount++
	}
	if filters.To != nil {
		query += fmt.Sprintf(" AND start_utc < $%d", argCount)
		args = append(args, filters.To.UTC())
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY start_utc ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit(), filters.Offset())

	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, r.ext(ctx), &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// FindOverlapping returns the doctor's non-cancelled appointments
// intersecting [start, end). Windows are half-open, so rows ending
// exactly at start (or starting exactly at end) do not match.
func (r *appointmentRepository) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_utc, end_utc,
			   status, notes, cancelled_utc, cancellation_reason,
			   completed_utc, version, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		AND status <> 'cancelled'
		AND start_utc < $3
		AND end_utc > $2
	`
	args := []interface{}{doctorID, start.UTC(), end.UTC()}

	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}

	query += " ORDER BY start_utc ASC"

	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, r.ext(ctx), &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_utc, end_utc,
			   status, notes, cancelled_utc, cancellation_reason,
			   completed_utc, version, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		AND status <> 'cancelled'
		AND start_utc < $3
		AND end_utc > $2
		ORDER BY start_utc ASC
	`
	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, r.ext(ctx), &appointments, query, doctorID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}
