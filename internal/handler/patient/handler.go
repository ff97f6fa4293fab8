package patient

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-api/internal/model"
	patientService "github.com/clinicore/scheduling-api/internal/service/patient"
	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
	"github.com/clinicore/scheduling-api/pkg/httputil"
)

type Handler struct {
	service patientService.PatientService
}

func NewHandler(service patientService.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	patient, err := h.service.CreatePatient(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, patient)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid patient ID", err))
		return
	}

	patient, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid patient ID", err))
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	patient, err := h.service.UpdatePatient(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) ListPatients(c *gin.Context) {
	filters := &model.PatientFilters{}
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	filters.SearchTerm = c.Query("search")
	if err := c.ShouldBindQuery(&filters.Pagination); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid pagination", err))
		return
	}
	filters.Normalize()

	patients, err := h.service.ListPatients(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, patients, filters.Page, filters.PageSize, len(patients))
}
