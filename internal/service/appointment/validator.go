package appointment

import (
	"fmt"
	"time"
	"unicode/utf8"

	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

// Business rules for appointment windows. Durations are inclusive at
// both bounds; advance-notice checks treat an exact boundary as valid.
const (
	MinDuration         = 10 * time.Minute
	MaxDuration         = 8 * time.Hour
	MinBookingNotice    = 15 * time.Minute
	MinRescheduleNotice = 2 * time.Hour
	RescheduleCutoff    = 24 * time.Hour

	MaxNotesLen  = 1024
	MaxReasonLen = 512
)

// ValidateWindow checks the shape of a requested window: ordering and
// duration. It sees only the inputs, never persisted state.
func ValidateWindow(start, end time.Time) error {
	if !start.Before(end) {
		return apperrors.InvalidWindow("appointment start must be before end")
	}

	duration := end.Sub(start)
	if duration < MinDuration {
		return apperrors.DurationOutOfRange(fmt.Sprintf("appointment must last at least %s", MinDuration))
	}
	if duration > MaxDuration {
		return apperrors.DurationOutOfRange(fmt.Sprintf("appointment cannot exceed %s", MaxDuration))
	}
	return nil
}

// ValidateBookingNotice requires the start to be at least
// MinBookingNotice in the future. Starting exactly on the boundary is
// allowed.
func ValidateBookingNotice(start, now time.Time) error {
	if start.Before(now.Add(MinBookingNotice)) {
		return apperrors.InsufficientAdvanceNotice(fmt.Sprintf("appointments must be booked at least %s in advance", MinBookingNotice))
	}
	return nil
}

// ValidateRescheduleNotice requires the new start to be at least
// MinRescheduleNotice in the future.
func ValidateRescheduleNotice(newStart, now time.Time) error {
	if newStart.Before(now.Add(MinRescheduleNotice)) {
		return apperrors.RescheduleWindowClosed(fmt.Sprintf("new appointment time must be at least %s in advance", MinRescheduleNotice))
	}
	return nil
}

// ValidateNotes bounds free-text fields. Length is measured in runes
// so multi-byte text is not penalized.
func ValidateNotes(notes string, max int) error {
	if utf8.RuneCountInString(notes) > max {
		return apperrors.NotesTooLong(fmt.Sprintf("text exceeds the maximum of %d characters", max))
	}
	return nil
}
