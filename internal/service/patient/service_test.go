package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-api/internal/model"
	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

type mockPatientRepository struct {
	mock.Mock
}

func (m *mockPatientRepository) Create(ctx context.Context, p *model.Patient) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPatientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*model.Patient), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPatientRepository) Update(ctx context.Context, p *model.Patient) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPatientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	args := m.Called(ctx, filters)
	if ps := args.Get(0); ps != nil {
		return ps.([]*model.Patient), args.Error(1)
	}
	return nil, args.Error(1)
}

func newCachedService(repo *mockPatientRepository) *Service {
	return NewService(repo, time.Minute, 10*time.Minute)
}

func TestCreatePatient(t *testing.T) {
	repo := new(mockPatientRepository)
	svc := newCachedService(repo)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Patient")).Return(nil)

	p, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, string(model.PatientStatusActive), p.Status)
	repo.AssertExpectations(t)
}

func TestGetPatientCaches(t *testing.T) {
	repo := new(mockPatientRepository)
	svc := newCachedService(repo)

	id := uuid.New()
	stored := &model.Patient{Base: model.Base{ID: id}, Name: "Ada"}
	repo.On("Get", mock.Anything, id).Return(stored, nil).Once()

	first, err := svc.GetPatient(context.Background(), id)
	require.NoError(t, err)

	second, err := svc.GetPatient(context.Background(), id)
	require.NoError(t, err)

	assert.Same(t, first, second)
	repo.AssertNumberOfCalls(t, "Get", 1)
}

func TestGetPatientNotFound(t *testing.T) {
	repo := new(mockPatientRepository)
	svc := newCachedService(repo)

	id := uuid.New()
	repo.On("Get", mock.Anything, id).Return(nil, apperrors.NotFound("patient"))

	_, err := svc.GetPatient(context.Background(), id)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestUpdatePatientInvalidatesCache(t *testing.T) {
	repo := new(mockPatientRepository)
	svc := newCachedService(repo)

	id := uuid.New()
	stored := &model.Patient{Base: model.Base{ID: id}, Name: "Ada", Email: "ada@example.com"}
	repo.On("Get", mock.Anything, id).Return(stored, nil)
	repo.On("Update", mock.Anything, stored).Return(nil)

	// Prime the cache.
	_, err := svc.GetPatient(context.Background(), id)
	require.NoError(t, err)

	newName := "Ada Byron"
	updated, err := svc.UpdatePatient(context.Background(), id, &model.UpdatePatientRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Ada Byron", updated.Name)
	assert.Equal(t, "ada@example.com", updated.Email, "unset fields stay as they were")

	// The next read must go back to the repository.
	_, err = svc.GetPatient(context.Background(), id)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Get", 3)
}
