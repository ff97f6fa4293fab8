package doctor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
)

type DoctorService interface {
	CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error)
	ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error)
}

// Service is the doctor directory, cached the same way as patients.
type Service struct {
	repo  repository.DoctorRepository
	cache *cache.Cache
}

func NewService(repo repository.DoctorRepository, cacheTTL, cleanupInterval time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, cleanupInterval),
	}
}

func (s *Service) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	doctor := &model.Doctor{
		Name:      req.Name,
		Email:     req.Email,
		Specialty: req.Specialty,
		Status:    string(model.DoctorStatusActive),
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	if cached, found := s.cache.Get(id.String()); found {
		return cached.(*model.Doctor), nil
	}

	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(id.String(), doctor, cache.DefaultExpiration)
	return doctor, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		doctor.Name = *req.Name
	}
	if req.Email != nil {
		doctor.Email = *req.Email
	}
	if req.Specialty != nil {
		doctor.Specialty = *req.Specialty
	}
	if req.Status != nil {
		doctor.Status = *req.Status
	}

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, err
	}

	s.cache.Delete(id.String())
	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	return s.repo.List(ctx, filters)
}

var _ DoctorService = (*Service)(nil)
