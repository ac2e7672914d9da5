package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/directory"
)

// Service coordinates reservations and cancellations over the store, the
// reservation lock and the user directory.
type Service struct {
	store  Store
	locker Locker
	users  directory.Directory
	slots  *SlotGenerator
}

func NewService(store Store, locker Locker, users directory.Directory, slots *SlotGenerator) *Service {
	return &Service{
		store:  store,
		locker: locker,
		users:  users,
		slots:  slots,
	}
}

// ReserveParams carries caller input for a reservation. A zero Duration
// defaults to the slot granularity.
type ReserveParams struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	At         time.Time
	Duration   int
	Symptoms   string
	Urgency    Urgency
}

// Reserve performs the atomic check-and-insert for a slot. The per
// (provider, datetime) lock closes the window between "slot looks free" and
// "booking recorded"; the partial unique index in the store is the backstop
// beneath it. Exactly one of N concurrent callers for the same key wins.
func (s *Service) Reserve(ctx context.Context, p ReserveParams) (*Appointment, error) {
	if p.Duration == 0 {
		p.Duration = s.slots.hours.SlotMinutes
	}
	if err := s.validateReserve(p); err != nil {
		return nil, err
	}
	if err := s.requireProvider(ctx, p.ProviderID); err != nil {
		return nil, err
	}

	var created *Appointment

	err := s.locker.WithReservationLock(ctx, p.ProviderID, p.At, func(lockCtx context.Context) error {
		existing, err := s.store.GetConfirmedAt(lockCtx, p.ProviderID, p.At)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check confirmed appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt, err := s.store.CreateAppointment(lockCtx, Appointment{
			PatientID:   p.PatientID,
			ProviderID:  p.ProviderID,
			ScheduledAt: p.At,
			Duration:    p.Duration,
			Symptoms:    p.Symptoms,
			Urgency:     p.Urgency,
			Status:      StatusConfirmed,
		})
		if err != nil {
			return err
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

func (s *Service) validateReserve(p ReserveParams) error {
	if p.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: provider id is required", ErrInvalidInput)
	}
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient id is required", ErrInvalidInput)
	}
	if p.At.IsZero() {
		return fmt.Errorf("%w: datetime is required", ErrInvalidInput)
	}
	if !p.At.After(time.Now()) {
		return fmt.Errorf("%w: datetime must be in the future", ErrInvalidInput)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	switch p.Urgency {
	case UrgencyRoutine, UrgencyUrgent, UrgencyEmergency:
	default:
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidInput, p.Urgency)
	}
	return nil
}

func (s *Service) requireProvider(ctx context.Context, providerID uuid.UUID) error {
	u, err := s.users.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return ErrProviderNotFound
		}
		return fmt.Errorf("load provider: %w", err)
	}
	if u.Role != directory.RoleProvider || !u.Active {
		return ErrProviderNotFound
	}
	return nil
}

// Cancel moves an appointment to cancelled. Only the booking's patient or
// its provider may cancel; cancelling an already-terminal appointment is a
// state conflict.
func (s *Service) Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, appointmentID, requesterID, StatusCancelled, false)
}

// Complete marks a confirmed appointment as completed. Provider only.
func (s *Service) Complete(ctx context.Context, appointmentID, requesterID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, appointmentID, requesterID, StatusCompleted, true)
}

// MarkNoShow marks a confirmed appointment as a no-show. Provider only.
func (s *Service) MarkNoShow(ctx context.Context, appointmentID, requesterID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, appointmentID, requesterID, StatusNoShow, true)
}

func (s *Service) transition(ctx context.Context, appointmentID, requesterID uuid.UUID, to Status, providerOnly bool) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	allowed := requesterID == appt.ProviderID
	if !providerOnly {
		allowed = allowed || requesterID == appt.PatientID
	}
	if !allowed {
		return nil, ErrNotParticipant
	}

	if err := ValidateTransition(appt.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		// The compare-and-set missed: another caller changed the status
		// between our read and the write.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: appointment is no longer %s", ErrInvalidTransition, appt.Status)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	return updated, nil
}

// GetAvailableSlots derives the open slots for a provider over a date range.
// The result is an advisory snapshot; it carries no lock.
func (s *Service) GetAvailableSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: date range end precedes start", ErrInvalidInput)
	}
	if err := s.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}

	dayStart := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	dayEnd := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1)

	confirmed, err := s.store.ListConfirmedInRange(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}

	return s.slots.Open(s.slots.Generate(providerID, from, to, confirmed)), nil
}

// GetAppointment loads one appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.GetAppointmentByID(ctx, id)
}

// ListByPatient returns a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return s.store.ListAppointmentsByPatient(ctx, patientID)
}

// ListByProvider returns a provider's appointments, oldest first.
func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	return s.store.ListAppointmentsByProvider(ctx, providerID)
}

// ReplaceAvailability wholesale replaces a provider's self-authored
// availability markers for one day (delete then recreate).
func (s *Service) ReplaceAvailability(ctx context.Context, providerID uuid.UUID, day time.Time, times []time.Time, duration int) error {
	if err := s.requireProvider(ctx, providerID); err != nil {
		return err
	}
	if duration <= 0 {
		duration = s.slots.hours.SlotMinutes
	}

	slots := make([]AvailabilitySlot, 0, len(times))
	for _, at := range times {
		if at.Year() != day.Year() || at.YearDay() != day.YearDay() {
			return fmt.Errorf("%w: slot %s is outside %s", ErrInvalidInput, at.Format("2006-01-02T15:04"), day.Format("2006-01-02"))
		}
		slots = append(slots, AvailabilitySlot{
			ProviderID: providerID,
			StartAt:    at,
			Duration:   duration,
		})
	}

	return s.store.ReplaceAvailability(ctx, providerID, day, slots)
}
