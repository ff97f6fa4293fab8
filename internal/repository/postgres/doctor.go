package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/scheduling-api/internal/model"
	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (id, name, email, specialty, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now().UTC()
	doctor.UpdatedAt = doctor.CreatedAt

	_, err := r.ext(ctx).ExecContext(ctx, query,
		doctor.ID,
		doctor.Name,
		doctor.Email,
		doctor.Specialty,
		doctor.Status,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, name, email, specialty, status, created_at, updated_at, deleted_at
		FROM doctors
		WHERE id = $1 AND deleted_at IS NULL
	`
	var doctor model.Doctor
	err := sqlx.GetContext(ctx, r.ext(ctx), &doctor, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("doctor")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET name = $1, email = $2, specialty = $3, status = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
	`
	doctor.UpdatedAt = time.Now().UTC()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		doctor.Name,
		doctor.Email,
		doctor.Specialty,
		doctor.Status,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("doctor")
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	query := `
		SELECT id, name, email, specialty, status, created_at, updated_at, deleted_at
		FROM doctors
		WHERE deleted_at IS NULL
	`
	args := []interface{}{}
	argCount := 1

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.Specialty != nil {
		query += fmt.Sprintf(" AND specialty = $%d", argCount)
		args = append(args, *filters.Specialty)
		argCount++
	}
	if filters.SearchTerm != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", argCount, argCount)
		args = append(args, "%"+filters.SearchTerm+"%")
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY name ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit(), filters.Offset())

	var doctors []*model.Doctor
	err := sqlx.SelectContext(ctx, r.ext(ctx), &doctors, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
