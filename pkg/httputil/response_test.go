package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

type testEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRespondWithErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NotFound("appointment"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid window", apperrors.InvalidWindow("start must be before end"), http.StatusBadRequest, "INVALID_WINDOW"},
		{"duration out of range", apperrors.DurationOutOfRange("too short"), http.StatusBadRequest, "DURATION_OUT_OF_RANGE"},
		{"insufficient notice", apperrors.InsufficientAdvanceNotice("too soon"), http.StatusBadRequest, "INSUFFICIENT_ADVANCE_NOTICE"},
		{"reschedule window closed", apperrors.RescheduleWindowClosed("locked in"), http.StatusBadRequest, "RESCHEDULE_WINDOW_CLOSED"},
		{"notes too long", apperrors.NotesTooLong("too long"), http.StatusBadRequest, "NOTES_TOO_LONG"},
		{"invalid request", apperrors.InvalidRequest("patient_id is required", nil), http.StatusBadRequest, "INVALID_REQUEST"},
		{"cannot modify cancelled", apperrors.CannotModifyCancelled(), http.StatusUnprocessableEntity, "CANNOT_MODIFY_CANCELLED"},
		{"cannot modify completed", apperrors.CannotModifyCompleted(), http.StatusUnprocessableEntity, "CANNOT_MODIFY_COMPLETED"},
		{"conflict", apperrors.Conflict("doctor already booked"), http.StatusConflict, "CONFLICT"},
		{"concurrency conflict", apperrors.ConcurrencyConflict(), http.StatusConflict, "CONCURRENCY_CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext(t)

			RespondWithError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decodeEnvelope(t, w)
			assert.Equal(t, "error", env.Status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestRespondWithErrorMasksInternalDetail(t *testing.T) {
	t.Run("wrapped internal error", func(t *testing.T) {
		c, w := testContext(t)

		RespondWithError(c, apperrors.Internal(errors.New("pq: connection refused")))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INTERNAL", env.Error.Code)
		assert.Equal(t, "internal server error", env.Error.Message)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("plain error", func(t *testing.T) {
		c, w := testContext(t)

		RespondWithError(c, errors.New("sqlx: missing destination"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INTERNAL", env.Error.Code)
		assert.NotContains(t, w.Body.String(), "sqlx")
	})
}

func TestRespondWithSuccess(t *testing.T) {
	c, w := testContext(t)

	RespondWithSuccess(c, gin.H{"id": "abc"})

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "success", env.Status)
	assert.Nil(t, env.Error)
	assert.JSONEq(t, `{"id":"abc"}`, string(env.Data))
}

func TestRespondWithPagination(t *testing.T) {
	c, w := testContext(t)

	RespondWithPagination(c, []string{"a", "b"}, 2, 20, 42)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string `json:"status"`
		Data   struct {
			Data       []string   `json:"data"`
			Pagination Pagination `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Len(t, body.Data.Data, 2)
	assert.Equal(t, 2, body.Data.Pagination.Page)
	assert.Equal(t, 20, body.Data.Pagination.PageSize)
	assert.Equal(t, 42, body.Data.Pagination.Count)
}

func TestBindErrorMessage(t *testing.T) {
	type createStub struct {
		PatientID string `json:"patient_id" binding:"required"`
		Email     string `json:"email" binding:"required,email"`
	}

	bind := func(t *testing.T, body string) error {
		t.Helper()
		c, _ := testContext(t)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var dto createStub
		return c.ShouldBindJSON(&dto)
	}

	t.Run("reports json field names", func(t *testing.T) {
		err := bind(t, `{"email":"not-an-email"}`)
		require.Error(t, err)

		msg := BindErrorMessage(err)
		assert.Contains(t, msg, "patient_id is required")
		assert.Contains(t, msg, "email must be a valid email")
		assert.NotContains(t, msg, "PatientID")
	})

	t.Run("malformed json falls back to generic message", func(t *testing.T) {
		err := bind(t, `{`)
		require.Error(t, err)
		assert.Equal(t, "invalid request body", BindErrorMessage(err))
	})

	t.Run("nil-safe for non-binding errors", func(t *testing.T) {
		assert.Equal(t, "invalid request body", BindErrorMessage(errors.New("boom")))
	})
}
