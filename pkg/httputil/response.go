package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

// Error carries a machine-readable code alongside the human message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Count    int `json:"count"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindInvalidWindow,
		apperrors.KindDurationOutOfRange,
		apperrors.KindInsufficientAdvanceNotice,
		apperrors.KindRescheduleWindowClosed,
		apperrors.KindNotesTooLong,
		apperrors.KindInvalidRequest:
		return http.StatusBadRequest
	case apperrors.KindCannotModifyCancelled,
		apperrors.KindCannotModifyCompleted:
		return http.StatusUnprocessableEntity
	case apperrors.KindConflict,
		apperrors.KindConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithCreated sends a success response for a newly created resource.
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response. Internal failures are
// masked; their detail belongs in the logs, not the wire.
func RespondWithError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)

	message := "internal server error"
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) && kind != apperrors.KindInternal {
		message = appErr.Message
	}

	c.JSON(status, Response{
		Status: "error",
		Error: &Error{
			Code:    string(kind),
			Message: message,
		},
	})
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, data interface{}, page, pageSize, count int) {
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data: PaginatedResponse{
			Data: data,
			Pagination: Pagination{
				Page:     page,
				PageSize: pageSize,
				Count:    count,
			},
		},
	})
}
