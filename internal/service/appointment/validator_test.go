package appointment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

func TestValidateWindow(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		wantKind apperrors.Kind
	}{
		{"thirty minutes", base, base.Add(30 * time.Minute), ""},
		{"exactly ten minutes", base, base.Add(MinDuration), ""},
		{"exactly eight hours", base, base.Add(MaxDuration), ""},
		{"one second short", base, base.Add(MinDuration - time.Second), apperrors.KindDurationOutOfRange},
		{"one second over", base, base.Add(MaxDuration + time.Second), apperrors.KindDurationOutOfRange},
		{"zero length", base, base, apperrors.KindInvalidWindow},
		{"inverted", base, base.Add(-time.Hour), apperrors.KindInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWindow(tt.start, tt.end)
			if tt.wantKind == "" {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsKind(err, tt.wantKind), "got %v", err)
			}
		})
	}
}

func TestValidateBookingNotice(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   time.Time
		wantErr bool
	}{
		{"well in advance", now.Add(24 * time.Hour), false},
		{"exactly fifteen minutes", now.Add(MinBookingNotice), false},
		{"one second short", now.Add(MinBookingNotice - time.Second), true},
		{"in the past", now.Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBookingNotice(tt.start, now)
			if tt.wantErr {
				assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientAdvanceNotice))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRescheduleNotice(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   time.Time
		wantErr bool
	}{
		{"next week", now.Add(7 * 24 * time.Hour), false},
		{"exactly two hours", now.Add(MinRescheduleNotice), false},
		{"one minute short", now.Add(MinRescheduleNotice - time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRescheduleNotice(tt.start, now)
			if tt.wantErr {
				assert.True(t, apperrors.IsKind(err, apperrors.KindRescheduleWindowClosed))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNotes(t *testing.T) {
	t.Run("empty is fine", func(t *testing.T) {
		assert.NoError(t, ValidateNotes("", MaxNotesLen))
	})

	t.Run("at the limit", func(t *testing.T) {
		assert.NoError(t, ValidateNotes(strings.Repeat("a", MaxNotesLen), MaxNotesLen))
	})

	t.Run("over the limit", func(t *testing.T) {
		err := ValidateNotes(strings.Repeat("a", MaxNotesLen+1), MaxNotesLen)
		assert.True(t, apperrors.IsKind(err, apperrors.KindNotesTooLong))
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		// 512 two-byte runes: 1024 bytes but only 512 characters.
		assert.NoError(t, ValidateNotes(strings.Repeat("é", 512), MaxReasonLen))
	})
}
