package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("direct app error", func(t *testing.T) {
		assert.Equal(t, KindConflict, KindOf(Conflict("slot taken")))
	})

	t.Run("wrapped app error", func(t *testing.T) {
		err := fmt.Errorf("booking failed: %w", NotFound("appointment"))
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("plain error maps to internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	})

	t.Run("nil has no kind", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(nil))
	})
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("reschedule: %w", RescheduleWindowClosed("too late"))
	assert.True(t, IsKind(err, KindRescheduleWindowClosed))
	assert.False(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(nil, KindConflict))
}

func TestAppErrorIs(t *testing.T) {
	err := fmt.Errorf("save: %w", ConcurrencyConflict())
	assert.True(t, errors.Is(err, ConcurrencyConflict()))
	assert.False(t, errors.Is(err, Conflict("")))
}

func TestErrorMessage(t *testing.T) {
	base := errors.New("pq: connection refused")
	err := Internal(base)
	assert.Contains(t, err.Error(), "internal server error")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, base, errors.Unwrap(err))
}
