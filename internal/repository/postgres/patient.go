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

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, name, email, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now().UTC()
	patient.UpdatedAt = patient.CreatedAt

	_, err := r.ext(ctx).ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.Email,
		patient.Phone,
		patient.Status,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, name, email, phone, status, created_at, updated_at, deleted_at
		FROM patients
		WHERE id = $1 AND deleted_at IS NULL
	`
	var patient model.Patient
	err := sqlx.GetContext(ctx, r.ext(ctx), &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, email = $2, phone = $3, status = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
	`
	patient.UpdatedAt = time.Now().UTC()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		patient.Name,
		patient.Email,
		patient.Phone,
		patient.Status,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("patient")
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	query := `
		SELECT id, name, email, phone, status, created_at, updated_at, deleted_at
		FROM patients
		WHERE deleted_at IS NULL
	`
	args := []interface{}{}
	argCount := 1

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.SearchTerm != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", argCount, argCount)
		args = append(args, "%"+filters.SearchTerm+"%")
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY name ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit(), filters.Offset())

	var patients []*model.Patient
	err := sqlx.SelectContext(ctx, r.ext(ctx), &patients, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
