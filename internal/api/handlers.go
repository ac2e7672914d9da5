package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/directory"
	"github.com/careloop/clinic-scheduling/internal/scheduling"
	"github.com/careloop/clinic-scheduling/internal/triage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// parseLocalDatetime accepts a local ISO-8601 timestamp with or without
// seconds. No timezone conversion: the value is provider-local wall clock.
func parseLocalDatetime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(datetimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", s, time.Local)
}

func parseLocalDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.Local)
}

func reserveHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		at, err := parseLocalDatetime(req.Datetime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_datetime", "datetime must be a local ISO-8601 timestamp, e.g. 2025-03-04T10:30:00")
			return
		}
		urgency, err := scheduling.ParseUrgency(req.Urgency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_urgency", err.Error())
			return
		}

		appt, err := svc.Reserve(r.Context(), scheduling.ReserveParams{
			ProviderID: providerID,
			PatientID:  patientID,
			At:         at,
			Duration:   req.Duration,
			Symptoms:   req.Symptoms,
			Urgency:    urgency,
		})
		if err != nil {
			handleReserveError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func handleReserveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, scheduling.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "time slot is no longer available")
	case errors.Is(err, scheduling.ErrSlotBeingBooked),
		errors.Is(err, scheduling.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func transitionHandler(apply func(r *http.Request, id, requester uuid.UUID) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ActorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		requesterID, err := uuid.Parse(req.RequesterID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a valid UUID")
			return
		}

		appt, err := apply(r, id, requesterID)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientParam := r.URL.Query().Get("patient_id")
		providerParam := r.URL.Query().Get("provider_id")

		var (
			appts []scheduling.Appointment
			err   error
		)
		switch {
		case patientParam != "":
			var patientID uuid.UUID
			if patientID, err = uuid.Parse(patientParam); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByPatient(r.Context(), patientID)
		case providerParam != "":
			var providerID uuid.UUID
			if providerID, err = uuid.Parse(providerParam); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByProvider(r.Context(), providerID)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "patient_id or provider_id is required")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
	}
}

func listSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		from := time.Now().Local()
		if v := r.URL.Query().Get("from"); v != "" {
			if from, err = parseLocalDate(v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
				return
			}
		}
		to := from.AddDate(0, 0, 6)
		if v := r.URL.Query().Get("to"); v != "" {
			if to, err = parseLocalDate(v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD")
				return
			}
		}

		slots, err := svc.GetAvailableSlots(r.Context(), providerID, from, to)
		if err != nil {
			switch {
			case errors.Is(err, scheduling.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			case errors.Is(err, scheduling.ErrProviderNotFound):
				writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"slots": toSlotResponses(slots)})
	}
}

func replaceAvailabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		var req AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		day, err := parseLocalDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		times := make([]time.Time, 0, len(req.Slots))
		duration := 0
		for _, s := range req.Slots {
			tm, err := time.Parse(timeLayout, s.Time)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_time", fmt.Sprintf("slot time %q must be HH:MM", s.Time))
				return
			}
			times = append(times, time.Date(day.Year(), day.Month(), day.Day(), tm.Hour(), tm.Minute(), 0, 0, day.Location()))
			if s.Duration > 0 {
				duration = s.Duration
			}
		}

		if err := svc.ReplaceAvailability(r.Context(), providerID, day, times, duration); err != nil {
			switch {
			case errors.Is(err, scheduling.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			case errors.Is(err, scheduling.ErrProviderNotFound):
				writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "availability saved"})
	}
}

func listProvidersHandler(users directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := users.ListProviders(r.Context(), r.URL.Query().Get("specialty"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]ProviderResponse, 0, len(providers))
		for _, p := range providers {
			specialty := "General Practice"
			if p.Specialty != nil && *p.Specialty != "" {
				specialty = *p.Specialty
			}
			out = append(out, ProviderResponse{ID: p.ID, Name: p.Name, Specialty: specialty})
		}
		writeJSON(w, http.StatusOK, map[string]any{"providers": out})
	}
}

func triageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TriageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		result := triage.Classify(req.Symptoms)
		writeJSON(w, http.StatusOK, TriageResponse{
			Urgency:         string(result.Urgency),
			Specialty:       result.Specialty,
			Recommendations: result.Recommendations,
			Confidence:      result.Confidence,
		})
	}
}
