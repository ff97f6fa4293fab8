package model

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

type Patient struct {
	Base
	Name   string `db:"name" json:"name"`
	Email  string `db:"email" json:"email"`
	Phone  string `db:"phone" json:"phone,omitempty"`
	Status string `db:"status" json:"status"`
}

type CreatePatientRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

// UpdatePatientRequest carries partial updates; nil fields are left
// untouched.
type UpdatePatientRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Phone  *string `json:"phone"`
	Status *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type PatientFilters struct {
	Status     *string
	SearchTerm string
	Pagination
}
