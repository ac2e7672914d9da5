package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// ParseUrgency normalizes caller input; empty input falls back to routine.
func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return UrgencyRoutine, nil
	case UrgencyRoutine:
		return UrgencyRoutine, nil
	case UrgencyUrgent:
		return UrgencyUrgent, nil
	case UrgencyEmergency:
		return UrgencyEmergency, nil
	}
	return "", fmt.Errorf("%w: unknown urgency %q", ErrInvalidInput, s)
}

type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	ProviderID  uuid.UUID
	ScheduledAt time.Time // provider-local wall clock, never converted
	Duration    int       // minutes
	Symptoms    string
	Urgency     Urgency
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConfirmationCode is the short human-facing booking reference.
func (a *Appointment) ConfirmationCode() string {
	return "APT" + strings.ToUpper(strings.ReplaceAll(a.ID.String(), "-", "")[:8])
}

// Slot is a derived view over the working-hours template and confirmed
// bookings. It is never persisted on its own.
type Slot struct {
	ProviderID uuid.UUID
	StartAt    time.Time
	Duration   int // minutes
	Booked     bool
}

// AvailabilitySlot is a provider-authored open-capacity marker. It lives in
// its own table and is never touched by the booking path.
type AvailabilitySlot struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	StartAt    time.Time
	Duration   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WorkingHours is the daily slot template. All fields come from config so
// that the cap and the business-day rule are not compiled in.
type WorkingHours struct {
	StartHour       int
	EndHour         int
	SlotMinutes     int
	MaxSlots        int // cap on returned open slots; <=0 means uncapped
	IncludeWeekends bool
}
