package model

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled   AppointmentStatus = "scheduled"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
)

// IsTerminal reports whether the status permits no further lifecycle
// transitions. Completed still accepts an idempotent Complete.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusCompleted
}

// IsActive reports whether the appointment still occupies its slot as
// a live booking.
func (s AppointmentStatus) IsActive() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusRescheduled
}

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled:   {AppointmentStatusRescheduled, AppointmentStatusCancelled, AppointmentStatusCompleted},
	AppointmentStatusRescheduled: {AppointmentStatusRescheduled, AppointmentStatusCancelled, AppointmentStatusCompleted},
	AppointmentStatusCancelled:   {},
	AppointmentStatusCompleted:   {},
}

// CanTransitionTo reports whether the state machine allows moving from
// s to target.
func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Appointment is the scheduling aggregate. All business rules about
// when a mutation is legal live in the service layer; the methods
// below enforce only the technical start-before-end invariant and
// record the matching domain event once the in-memory transition has
// succeeded. Times are stored in UTC.
type Appointment struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	StartUTC           time.Time         `db:"start_utc" json:"start_utc"`
	EndUTC             time.Time         `db:"end_utc" json:"end_utc"`
	Status             AppointmentStatus `db:"status" json:"status"`
	Notes              string            `db:"notes" json:"notes,omitempty"`
	CancelledUTC       *time.Time        `db:"cancelled_utc" json:"cancelled_utc,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CompletedUTC       *time.Time        `db:"completed_utc" json:"completed_utc,omitempty"`
	Version            int               `db:"version" json:"version"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`

	pendingEvents []DomainEvent
}

// NewAppointment constructs a scheduled appointment and records the
// booked event. The window must already have passed full validation.
func NewAppointment(patientID, doctorID uuid.UUID, start, end time.Time, notes string, now time.Time) (*Appointment, error) {
	start, end, now = start.UTC(), end.UTC(), now.UTC()
	if !start.Before(end) {
		return nil, apperrors.InvalidWindow("appointment start must be before end")
	}

	a := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		StartUTC:  start,
		EndUTC:    end,
		Status:    AppointmentStatusScheduled,
		Notes:     notes,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.appendEvent(AppointmentBooked{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		StartUTC:      a.StartUTC,
		EndUTC:        a.EndUTC,
		Timestamp:     now,
	})
	return a, nil
}

// Reschedule moves the appointment to a new window and records an
// event carrying both windows.
func (a *Appointment) Reschedule(newStart, newEnd time.Time, reason string, now time.Time) error {
	newStart, newEnd, now = newStart.UTC(), newEnd.UTC(), now.UTC()
	if !newStart.Before(newEnd) {
		return apperrors.InvalidWindow("appointment start must be before end")
	}

	oldStart, oldEnd := a.StartUTC, a.EndUTC
	a.StartUTC = newStart
	a.EndUTC = newEnd
	a.Status = AppointmentStatusRescheduled
	a.UpdatedAt = now
	a.appendEvent(AppointmentRescheduled{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		OldStartUTC:   oldStart,
		OldEndUTC:     oldEnd,
		NewStartUTC:   newStart,
		NewEndUTC:     newEnd,
		Reason:        reason,
		Timestamp:     now,
	})
	return nil
}

// Cancel releases the appointment's slot.
func (a *Appointment) Cancel(reason string, now time.Time) {
	now = now.UTC()
	a.Status = AppointmentStatusCancelled
	a.CancelledUTC = &now
	if reason != "" {
		a.CancellationReason = &reason
	}
	a.UpdatedAt = now
	a.appendEvent(AppointmentCancelled{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		StartUTC:      a.StartUTC,
		EndUTC:        a.EndUTC,
		Reason:        reason,
		Timestamp:     now,
	})
}

// Complete marks the visit as having taken place. Closing notes, when
// given, are appended to the existing notes.
func (a *Appointment) Complete(notes string, now time.Time) {
	now = now.UTC()
	a.Status = AppointmentStatusCompleted
	a.CompletedUTC = &now
	if notes != "" {
		if a.Notes == "" {
			a.Notes = notes
		} else {
			a.Notes = a.Notes + "\n" + notes
		}
	}
	a.UpdatedAt = now
	a.appendEvent(AppointmentCompleted{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		StartUTC:      a.StartUTC,
		EndUTC:        a.EndUTC,
		Timestamp:     now,
	})
}

// PendingEvents returns the events accumulated since the last clear,
// in order of occurrence.
func (a *Appointment) PendingEvents() []DomainEvent {
	return a.pendingEvents
}

// ClearEvents discards the accumulated events. Called after they have
// been handed off for publication.
func (a *Appointment) ClearEvents() {
	a.pendingEvents = nil
}

func (a *Appointment) appendEvent(ev DomainEvent) {
	a.pendingEvents = append(a.pendingEvents, ev)
}

type BookAppointmentRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID  uuid.UUID `json:"doctor_id" binding:"required"`
	Start     time.Time `json:"start" binding:"required"`
	End       time.Time `json:"end" binding:"required"`
	Notes     string    `json:"notes"`
}

type RescheduleAppointmentRequest struct {
	Start  time.Time `json:"start" binding:"required"`
	End    time.Time `json:"end" binding:"required"`
	Reason string    `json:"reason"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type CompleteAppointmentRequest struct {
	Notes string `json:"notes"`
}

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentFilters struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *AppointmentStatus
	From      *time.Time
	To        *time.Time
	Pagination
}
