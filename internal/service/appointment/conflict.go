package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
)

// Overlaps reports whether two half-open windows [s1, e1) and
// [s2, e2) intersect. Back-to-back windows sharing a boundary do not
// overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// ConflictDetector answers whether a doctor already holds a booking
// that intersects a candidate window. Cancelled appointments never
// conflict; completed appointments keep their slot occupied.
type ConflictDetector struct {
	repo repository.AppointmentRepository
}

func NewConflictDetector(repo repository.AppointmentRepository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// HasConflict loads the doctor's candidate appointments and evaluates
// the overlap predicate against each. excludeID skips the appointment
// being moved so a reschedule never collides with itself.
func (d *ConflictDetector) HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	candidates, err := d.repo.FindOverlapping(ctx, doctorID, start, end, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to load candidate appointments: %w", err)
	}

	for _, apt := range candidates {
		if apt.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		if Overlaps(apt.StartUTC, apt.EndUTC, start, end) {
			return true, nil
		}
	}
	return false, nil
}
