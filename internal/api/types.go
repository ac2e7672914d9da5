package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/scheduling"
)

// Wire formats: dates are ISO-8601 calendar dates, times are 24-hour HH:MM,
// datetimes are local ISO-8601 timestamps without a timezone offset.
const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04"
	datetimeLayout = "2006-01-02T15:04:05"
)

type ReserveRequest struct {
	ProviderID string `json:"provider_id"`
	PatientID  string `json:"patient_id"`
	Datetime   string `json:"datetime"`
	Duration   int    `json:"duration,omitempty"`
	Symptoms   string `json:"symptoms,omitempty"`
	Urgency    string `json:"urgency,omitempty"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	ProviderID       uuid.UUID `json:"provider_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	Datetime         string    `json:"datetime"`
	Duration         int       `json:"duration"`
	Symptoms         string    `json:"symptoms,omitempty"`
	Urgency          string    `json:"urgency"`
	Status           string    `json:"status"`
	ConfirmationCode string    `json:"confirmation_code"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		ProviderID:       a.ProviderID,
		PatientID:        a.PatientID,
		Datetime:         a.ScheduledAt.Format(datetimeLayout),
		Duration:         a.Duration,
		Symptoms:         a.Symptoms,
		Urgency:          string(a.Urgency),
		Status:           string(a.Status),
		ConfirmationCode: a.ConfirmationCode(),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type SlotResponse struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
}

func toSlotResponses(slots []scheduling.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			Date:     s.StartAt.Format(dateLayout),
			Time:     s.StartAt.Format(timeLayout),
			Duration: s.Duration,
		})
	}
	return out
}

type ActorRequest struct {
	RequesterID string `json:"requester_id"`
}

type TriageRequest struct {
	Symptoms string `json:"symptoms"`
}

type TriageResponse struct {
	Urgency         string   `json:"urgency"`
	Specialty       string   `json:"specialty"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
}

type AvailabilityRequest struct {
	Date  string             `json:"date"`
	Slots []AvailabilitySlot `json:"slots"`
}

type AvailabilitySlot struct {
	Time     string `json:"time"`
	Duration int    `json:"duration,omitempty"`
}

type ProviderResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
