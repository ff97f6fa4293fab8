package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/scheduling-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

type patientRepository struct {
	BaseRepository
}

type doctorRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}
