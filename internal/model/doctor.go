package model

type DoctorStatus string

const (
	DoctorStatusActive   DoctorStatus = "active"
	DoctorStatusInactive DoctorStatus = "inactive"
)

type Doctor struct {
	Base
	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email"`
	Specialty string `db:"specialty" json:"specialty,omitempty"`
	Status    string `db:"status" json:"status"`
}

type CreateDoctorRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Specialty string `json:"specialty"`
}

// UpdateDoctorRequest carries partial updates; nil fields are left
// untouched.
type UpdateDoctorRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Specialty *string `json:"specialty"`
	Status    *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type DoctorFilters struct {
	Status     *string
	Specialty  *string
	SearchTerm string
	Pagination
}
