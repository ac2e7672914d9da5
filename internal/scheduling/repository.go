package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrProviderNotFound    = errors.New("provider not found or inactive")

	// ErrSlotTaken is the expected, recoverable race outcome: the caller
	// should refresh availability and retry with a different slot.
	ErrSlotTaken = errors.New("slot already has a confirmed appointment")

	// ErrSlotBeingBooked means another request holds the reservation lock.
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")

	ErrLockNotAcquired   = errors.New("reservation lock not acquired")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotParticipant    = errors.New("requester is not a participant in this appointment")
	ErrInvalidInput      = errors.New("invalid input")
)

// Store contains all persistence interactions needed by the service. The
// implementation must carry a uniqueness constraint equivalent to
// (provider_id, scheduled_at, status='confirmed') beneath CreateAppointment.
type Store interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// GetConfirmedAt probes for a confirmed booking at an exact datetime.
	GetConfirmedAt(ctx context.Context, providerID uuid.UUID, at time.Time) (*Appointment, error)
	ListConfirmedInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// CreateAppointment inserts a confirmed booking and returns ErrSlotTaken
	// on a uniqueness violation.
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set: the row is updated only
	// if it is still in the from status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error)

	// ReplaceAvailability wholesale replaces a provider's self-authored
	// availability markers for one calendar day.
	ReplaceAvailability(ctx context.Context, providerID uuid.UUID, day time.Time, slots []AvailabilitySlot) error
	ListAvailabilityForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]AvailabilitySlot, error)
}

// Locker guards the check-and-insert critical section per
// (provider, datetime) key.
type Locker interface {
	WithReservationLock(ctx context.Context, providerID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error
}
