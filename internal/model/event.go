package model

import (
	"time"

	"github.com/google/uuid"
)

// Event type identifiers published to the broker and stored on outbox
// rows. Consumers switch on these strings.
const (
	EventTypeAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventTypeAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventTypeAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventTypeAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

// DomainEvent is implemented by every appointment lifecycle event.
// Events are accumulated on the aggregate during a state transition
// and recorded to the outbox in the same transaction as the write;
// the core never publishes them directly.
type DomainEvent interface {
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// AppointmentBooked is emitted when a new appointment enters the
// scheduled state.
type AppointmentBooked struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	StartUTC      time.Time `json:"start_utc"`
	EndUTC        time.Time `json:"end_utc"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e AppointmentBooked) EventType() string      { return EventTypeAppointmentBooked }
func (e AppointmentBooked) AggregateID() uuid.UUID { return e.AppointmentID }
func (e AppointmentBooked) OccurredAt() time.Time  { return e.Timestamp }

// AppointmentRescheduled carries both the previous and the new window
// so downstream consumers can free the old slot and occupy the new one.
type AppointmentRescheduled struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	OldStartUTC   time.Time `json:"old_start_utc"`
	OldEndUTC     time.Time `json:"old_end_utc"`
	NewStartUTC   time.Time `json:"new_start_utc"`
	NewEndUTC     time.Time `json:"new_end_utc"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e AppointmentRescheduled) EventType() string      { return EventTypeAppointmentRescheduled }
func (e AppointmentRescheduled) AggregateID() uuid.UUID { return e.AppointmentID }
func (e AppointmentRescheduled) OccurredAt() time.Time  { return e.Timestamp }

// AppointmentCancelled frees the appointment's slot.
type AppointmentCancelled struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	StartUTC      time.Time `json:"start_utc"`
	EndUTC        time.Time `json:"end_utc"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e AppointmentCancelled) EventType() string      { return EventTypeAppointmentCancelled }
func (e AppointmentCancelled) AggregateID() uuid.UUID { return e.AppointmentID }
func (e AppointmentCancelled) OccurredAt() time.Time  { return e.Timestamp }

// AppointmentCompleted marks the visit as having taken place. The slot
// stays occupied.
type AppointmentCompleted struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	StartUTC      time.Time `json:"start_utc"`
	EndUTC        time.Time `json:"end_utc"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e AppointmentCompleted) EventType() string      { return EventTypeAppointmentCompleted }
func (e AppointmentCompleted) AggregateID() uuid.UUID { return e.AppointmentID }
func (e AppointmentCompleted) OccurredAt() time.Time  { return e.Timestamp }
