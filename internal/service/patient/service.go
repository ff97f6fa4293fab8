package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
}

// Service is the patient directory. Reads go through a local TTL cache;
// any write invalidates the cached entry.
type Service struct {
	repo  repository.PatientRepository
	cache *cache.Cache
}

func NewService(repo repository.PatientRepository, cacheTTL, cleanupInterval time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, cleanupInterval),
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Status: string(model.PatientStatusActive),
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	if cached, found := s.cache.Get(id.String()); found {
		return cached.(*model.Patient), nil
	}

	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(id.String(), patient, cache.DefaultExpiration)
	return patient, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}
	if req.Status != nil {
		patient.Status = *req.Status
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}

	s.cache.Delete(id.String())
	return patient, nil
}

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	return s.repo.List(ctx, filters)
}

var _ PatientService = (*Service)(nil)
