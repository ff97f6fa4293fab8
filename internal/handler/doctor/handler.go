package doctor

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-api/internal/model"
	doctorService "github.com/clinicore/scheduling-api/internal/service/doctor"
	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
	"github.com/clinicore/scheduling-api/pkg/httputil"
)

type Handler struct {
	service doctorService.DoctorService
}

func NewHandler(service doctorService.DoctorService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.CreateDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.PUT("/:id", h.UpdateDoctor)
	}
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	doctor, err := h.service.CreateDoctor(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, doctor)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid doctor ID", err))
		return
	}

	doctor, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, doctor)
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid doctor ID", err))
		return
	}

	var req model.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	doctor, err := h.service.UpdateDoctor(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, doctor)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	filters := &model.DoctorFilters{}
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	if specialty := c.Query("specialty"); specialty != "" {
		filters.Specialty = &specialty
	}
	filters.SearchTerm = c.Query("search")
	if err := c.ShouldBindQuery(&filters.Pagination); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid pagination", err))
		return
	}
	filters.Normalize()

	doctors, err := h.service.ListDoctors(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, doctors, filters.Page, filters.PageSize, len(doctors))
}
