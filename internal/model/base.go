package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Normalize clamps page and page size to sane bounds.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

// Limit returns the SQL limit for the page.
func (p *Pagination) Limit() int {
	p.Normalize()
	return p.PageSize
}

// Offset returns the SQL offset for the page.
func (p *Pagination) Offset() int {
	p.Normalize()
	return (p.Page - 1) * p.PageSize
}
