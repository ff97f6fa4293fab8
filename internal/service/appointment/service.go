package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
	"github.com/clinicore/scheduling-api/internal/service/event"
	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
	"github.com/clinicore/scheduling-api/pkg/logger"
	"github.com/clinicore/scheduling-api/pkg/metrics"
)

// AppointmentService is the lifecycle surface the HTTP layer depends on.
type AppointmentService interface {
	Book(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, req *model.CancelAppointmentRequest) (*model.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, req *model.CompleteAppointmentRequest) (*model.Appointment, error)
	DoctorSchedule(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
	Availability(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]model.TimeSlot, error)
}

// AvailabilityConfig bounds the working day used when computing free
// slots for a doctor.
type AvailabilityConfig struct {
	DayStartHour int
	DayEndHour   int
}

func DefaultAvailabilityConfig() AvailabilityConfig {
	return AvailabilityConfig{DayStartHour: 8, DayEndHour: 18}
}

// Service orchestrates the appointment lifecycle. Input-shape checks
// run before any state is loaded; status legality, the reschedule
// cutoff and conflict detection run against loaded state; the
// aggregate mutation itself re-checks only start-before-end. Every
// write persists the aggregate and its pending events in one
// transaction.
type Service struct {
	repo        repository.AppointmentRepository
	patientRepo repository.PatientRepository
	doctorRepo  repository.DoctorRepository
	txm         repository.TxManager
	detector    *ConflictDetector
	events      event.Recorder
	metrics     *metrics.Metrics
	logger      *logger.Logger
	avail       AvailabilityConfig

	now func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	patientRepo repository.PatientRepository,
	doctorRepo repository.DoctorRepository,
	txm repository.TxManager,
	events event.Recorder,
	m *metrics.Metrics,
	log *logger.Logger,
	avail AvailabilityConfig,
) *Service {
	return &Service{
		repo:        repo,
		patientRepo: patientRepo,
		doctorRepo:  doctorRepo,
		txm:         txm,
		detector:    NewConflictDetector(repo),
		events:      events,
		metrics:     m,
		logger:      log,
		avail:       avail,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Book validates the window, confirms both participants exist, rejects
// conflicting slots and creates the appointment in the scheduled
// state.
func (s *Service) Book(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	now := s.now()
	start, end := req.Start.UTC(), req.End.UTC()

	if err := ValidateNotes(req.Notes, MaxNotesLen); err != nil {
		return nil, err
	}
	if err := ValidateWindow(start, end); err != nil {
		return nil, err
	}
	if err := ValidateBookingNotice(start, now); err != nil {
		return nil, err
	}

	if _, err := s.patientRepo.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.doctorRepo.Get(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	conflict, err := s.detector.HasConflict(ctx, req.DoctorID, start, end, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if conflict {
		s.metrics.SchedulingConflicts.Inc()
		return nil, apperrors.Conflict("doctor already has an appointment in this window")
	}

	apt, err := model.NewAppointment(req.PatientID, req.DoctorID, start, end, req.Notes, now)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, apt, true); err != nil {
		return nil, err
	}

	s.metrics.AppointmentsBooked.Inc()
	s.logger.Info("appointment booked",
		"appointment_id", apt.ID.String(),
		"doctor_id", apt.DoctorID.String(),
		"start_utc", apt.StartUTC)
	return apt, nil
}

// Reschedule moves an appointment to a new window. The 24h cutoff is
// evaluated against the appointment's current start time, not the
// requested one: once the visit is less than RescheduleCutoff away,
// the window is closed no matter where the caller wants to move it.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	now := s.now()
	start, end := req.Start.UTC(), req.End.UTC()

	if err := ValidateNotes(req.Reason, MaxReasonLen); err != nil {
		return nil, err
	}
	if err := ValidateWindow(start, end); err != nil {
		return nil, err
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkModifiable(apt); err != nil {
		return nil, err
	}

	if apt.StartUTC.Before(now.Add(RescheduleCutoff)) {
		return nil, apperrors.RescheduleWindowClosed(fmt.Sprintf("appointments starting within %s can no longer be rescheduled", RescheduleCutoff))
	}
	if err := ValidateRescheduleNotice(start, now); err != nil {
		return nil, err
	}

	conflict, err := s.detector.HasConflict(ctx, apt.DoctorID, start, end, &apt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if conflict {
		s.metrics.SchedulingConflicts.Inc()
		return nil, apperrors.Conflict("doctor already has an appointment in the new window")
	}

	if err := apt.Reschedule(start, end, req.Reason, now); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, apt, false); err != nil {
		return nil, err
	}

	s.metrics.AppointmentsRescheduled.Inc()
	s.logger.Info("appointment rescheduled",
		"appointment_id", apt.ID.String(),
		"start_utc", apt.StartUTC)
	return apt, nil
}

// Cancel releases the slot. Cancelling an appointment frees its window
// for new bookings immediately.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, req *model.CancelAppointmentRequest) (*model.Appointment, error) {
	if err := ValidateNotes(req.Reason, MaxReasonLen); err != nil {
		return nil, err
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkModifiable(apt); err != nil {
		return nil, err
	}

	apt.Cancel(req.Reason, s.now())

	if err := s.persist(ctx, apt, false); err != nil {
		return nil, err
	}

	s.metrics.AppointmentsCancelled.Inc()
	s.logger.Info("appointment cancelled", "appointment_id", apt.ID.String())
	return apt, nil
}

// Complete marks the visit as having taken place. Completing an
// already-completed appointment is a no-op returning the current
// state: no event, no version bump.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, req *model.CompleteAppointmentRequest) (*model.Appointment, error) {
	if err := ValidateNotes(req.Notes, MaxNotesLen); err != nil {
		return nil, err
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status == model.AppointmentStatusCancelled {
		return nil, apperrors.CannotModifyCancelled()
	}
	if apt.Status == model.AppointmentStatusCompleted {
		return apt, nil
	}

	apt.Complete(req.Notes, s.now())

	if err := s.persist(ctx, apt, false); err != nil {
		return nil, err
	}

	s.metrics.AppointmentsCompleted.Inc()
	s.logger.Info("appointment completed", "appointment_id", apt.ID.String())
	return apt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.repo.List(ctx, filters)
}

// DoctorSchedule returns the doctor's non-cancelled appointments
// intersecting [from, to).
func (s *Service) DoctorSchedule(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	if !from.Before(to) {
		return nil, apperrors.InvalidWindow("schedule range start must be before end")
	}
	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListForDoctor(ctx, doctorID, from.UTC(), to.UTC())
}

// Availability lists the doctor's free slots on the given day within
// the configured working hours. Gaps shorter than the minimum
// appointment duration are not bookable and are omitted.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]model.TimeSlot, error) {
	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	day = day.UTC()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), s.avail.DayStartHour, 0, 0, 0, time.UTC)
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), s.avail.DayEndHour, 0, 0, 0, time.UTC)

	booked, err := s.repo.ListForDoctor(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var slots []model.TimeSlot
	cursor := dayStart
	for _, apt := range booked {
		if apt.StartUTC.After(cursor) {
			gapEnd := apt.StartUTC
			if gapEnd.After(dayEnd) {
				gapEnd = dayEnd
			}
			if gapEnd.Sub(cursor) >= MinDuration {
				slots = append(slots, model.TimeSlot{Start: cursor, End: gapEnd})
			}
		}
		if apt.EndUTC.After(cursor) {
			cursor = apt.EndUTC
		}
	}
	if dayEnd.Sub(cursor) >= MinDuration {
		slots = append(slots, model.TimeSlot{Start: cursor, End: dayEnd})
	}
	return slots, nil
}

// persist writes the aggregate and its pending events atomically,
// then clears the events so they are never recorded twice.
func (s *Service) persist(ctx context.Context, apt *model.Appointment, create bool) error {
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		var saveErr error
		if create {
			saveErr = s.repo.Create(ctx, apt)
		} else {
			saveErr = s.repo.Update(ctx, apt)
		}
		if saveErr != nil {
			return saveErr
		}
		return s.events.Record(ctx, apt.PendingEvents()...)
	})
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindConcurrencyConflict:
			s.metrics.ConcurrencyConflicts.Inc()
		case apperrors.KindConflict:
			s.metrics.SchedulingConflicts.Inc()
		}
		return err
	}
	apt.ClearEvents()
	return nil
}

func checkModifiable(apt *model.Appointment) error {
	switch apt.Status {
	case model.AppointmentStatusCancelled:
		return apperrors.CannotModifyCancelled()
	case model.AppointmentStatusCompleted:
		return apperrors.CannotModifyCompleted()
	}
	return nil
}

var _ AppointmentService = (*Service)(nil)
