package appointment

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-api/internal/model"
	appointmentService "github.com/clinicore/scheduling-api/internal/service/appointment"
	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
	"github.com/clinicore/scheduling-api/pkg/httputil"
)

type Handler struct {
	service appointmentService.AppointmentService
}

func NewHandler(service appointmentService.AppointmentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/complete", h.CompleteAppointment)
	}
	doctors := r.Group("/doctors")
	{
		doctors.GET("/:id/schedule", h.GetDoctorSchedule)
		doctors.GET("/:id/availability", h.GetDoctorAvailability)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	apt, err := h.service.Book(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid appointment ID", err))
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{}

	if idStr := c.Query("doctor_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidRequest("invalid doctor ID", err))
			return
		}
		filters.DoctorID = &id
	}
	if idStr := c.Query("patient_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidRequest("invalid patient ID", err))
			return
		}
		filters.PatientID = &id
	}
	if status := c.Query("status"); status != "" {
		st := model.AppointmentStatus(status)
		filters.Status = &st
	}
	if v := c.Query("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidRequest("invalid from timestamp", err))
			return
		}
		filters.From = &ts
	}
	if v := c.Query("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidRequest("invalid to timestamp", err))
			return
		}
		filters.To = &ts
	}
	if v := c.Query("page"); v != "" {
		filters.Page, _ = strconv.Atoi(v)
	}
	if v := c.Query("page_size"); v != "" {
		filters.PageSize, _ = strconv.Atoi(v)
	}
	filters.Normalize()

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, appointments, filters.Page, filters.PageSize, len(appointments))
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid appointment ID", err))
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid appointment ID", err))
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid appointment ID", err))
		return
	}

	var req model.CompleteAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest(httputil.BindErrorMessage(err), err))
		return
	}

	apt, err := h.service.Complete(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) GetDoctorSchedule(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid doctor ID", err))
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid from timestamp", err))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid to timestamp", err))
		return
	}

	appointments, err := h.service.DoctorSchedule(c.Request.Context(), doctorID, from, to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) GetDoctorAvailability(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid doctor ID", err))
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidRequest("invalid date, expected YYYY-MM-DD", err))
		return
	}

	slots, err := h.service.Availability(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}

	httputil.RespondWithSuccess(c, slots)
}
