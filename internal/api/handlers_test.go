package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/clinic-scheduling/internal/directory"
	"github.com/careloop/clinic-scheduling/internal/scheduling"
)

type stubDirectory struct {
	users map[uuid.UUID]directory.User
}

func (d *stubDirectory) GetByID(_ context.Context, id uuid.UUID) (*directory.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return &u, nil
}

func (d *stubDirectory) ListProviders(_ context.Context, _ string) ([]directory.User, error) {
	var out []directory.User
	for _, u := range d.users {
		if u.Role == directory.RoleProvider && u.Active && u.Verified {
			out = append(out, u)
		}
	}
	return out, nil
}

type testEnv struct {
	handler    http.Handler
	providerID uuid.UUID
	patientID  uuid.UUID
	strangerID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	providerID := uuid.New()
	patientID := uuid.New()
	strangerID := uuid.New()
	specialty := "Cardiology"

	users := &stubDirectory{users: map[uuid.UUID]directory.User{
		providerID: {ID: providerID, Name: "Dr. Osei", Role: directory.RoleProvider, Specialty: &specialty, Active: true, Verified: true},
		patientID:  {ID: patientID, Name: "Grace", Role: directory.RolePatient, Active: true},
		strangerID: {ID: strangerID, Name: "Hugh", Role: directory.RolePatient, Active: true},
	}}

	svc := scheduling.NewService(
		scheduling.NewMemoryStore(),
		scheduling.NewLocalLocker(),
		users,
		scheduling.NewSlotGenerator(scheduling.WorkingHours{StartHour: 9, EndHour: 17, SlotMinutes: 30, MaxSlots: 6}),
	)

	return &testEnv{
		handler:    NewRouter(RouterConfig{Service: svc, Directory: users, Env: "test", Version: "test"}),
		providerID: providerID,
		patientID:  patientID,
		strangerID: strangerID,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func futureDatetime(t *testing.T) string {
	t.Helper()
	day := time.Now().AddDate(0, 0, 7)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.Local).Format("2006-01-02T15:04:05")
}

func TestReserveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	dt := futureDatetime(t)

	rec := env.do(t, http.MethodPost, "/appointments", ReserveRequest{
		ProviderID: env.providerID.String(),
		PatientID:  env.patientID.String(),
		Datetime:   dt,
		Symptoms:   "sore throat",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, dt, resp.Datetime)
	assert.Equal(t, 30, resp.Duration)
	assert.NotEmpty(t, resp.ConfirmationCode)

	// Same slot again: conflict, with a machine-readable code.
	rec = env.do(t, http.MethodPost, "/appointments", ReserveRequest{
		ProviderID: env.providerID.String(),
		PatientID:  env.strangerID.String(),
		Datetime:   dt,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "slot_taken", errResp.Error)
}

func TestReserveEndpointValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  ReserveRequest
		code string
	}{
		{"bad provider uuid", ReserveRequest{ProviderID: "nope", PatientID: env.patientID.String(), Datetime: futureDatetime(t)}, "invalid_provider_id"},
		{"bad datetime", ReserveRequest{ProviderID: env.providerID.String(), PatientID: env.patientID.String(), Datetime: "tomorrow"}, "invalid_datetime"},
		{"bad urgency", ReserveRequest{ProviderID: env.providerID.String(), PatientID: env.patientID.String(), Datetime: futureDatetime(t), Urgency: "asap"}, "invalid_urgency"},
		{"past datetime", ReserveRequest{ProviderID: env.providerID.String(), PatientID: env.patientID.String(), Datetime: "2001-01-01T10:00:00"}, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/appointments", tt.req)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, tt.code, errResp.Error)
		})
	}
}

func TestReserveEndpointUnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/appointments", ReserveRequest{
		ProviderID: uuid.NewString(),
		PatientID:  env.patientID.String(),
		Datetime:   futureDatetime(t),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/appointments", ReserveRequest{
		ProviderID: env.providerID.String(),
		PatientID:  env.patientID.String(),
		Datetime:   futureDatetime(t),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	cancelPath := fmt.Sprintf("/appointments/%s/cancel", appt.ID)

	// A stranger is forbidden.
	rec = env.do(t, http.MethodPost, cancelPath, ActorRequest{RequesterID: env.strangerID.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The patient cancels.
	rec = env.do(t, http.MethodPost, cancelPath, ActorRequest{RequesterID: env.patientID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)

	// A repeat cancel is a state conflict.
	rec = env.do(t, http.MethodPost, cancelPath, ActorRequest{RequesterID: env.patientID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCompleteEndpointProviderOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/appointments", ReserveRequest{
		ProviderID: env.providerID.String(),
		PatientID:  env.patientID.String(),
		Datetime:   futureDatetime(t),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))

	completePath := fmt.Sprintf("/appointments/%s/complete", appt.ID)

	rec = env.do(t, http.MethodPost, completePath, ActorRequest{RequesterID: env.patientID.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, completePath, ActorRequest{RequesterID: env.providerID.String()})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSlotsEndpointExcludesBooked(t *testing.T) {
	env := newTestEnv(t)
	dt := futureDatetime(t)
	date := dt[:10]
	slotsPath := fmt.Sprintf("/providers/%s/slots?from=%s&to=%s", env.providerID, date, date)

	rec := env.do(t, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var before struct {
		Slots []SlotResponse `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	require.NotEmpty(t, before.Slots)
	assert.True(t, hasSlot(before.Slots, date, "10:00"))
	assert.LessOrEqual(t, len(before.Slots), 6, "configured cap")

	rec = env.do(t, http.MethodPost, "/appointments", ReserveRequest{
		ProviderID: env.providerID.String(),
		PatientID:  env.patientID.String(),
		Datetime:   dt,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var after struct {
		Slots []SlotResponse `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.False(t, hasSlot(after.Slots, date, "10:00"), "booked slot must disappear immediately")
}

func hasSlot(slots []SlotResponse, date, tm string) bool {
	for _, s := range slots {
		if s.Date == date && s.Time == tm {
			return true
		}
	}
	return false
}

func TestTriageEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/triage", TriageRequest{Symptoms: "severe chest pain"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TriageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "urgent", resp.Urgency)
	assert.Equal(t, "Cardiology", resp.Specialty)
	assert.Len(t, resp.Recommendations, 3)
	assert.InDelta(t, 0.85, resp.Confidence, 1e-9)
}

func TestProvidersEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Providers []ProviderResponse `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, 1)
	assert.Equal(t, env.providerID, resp.Providers[0].ID)
	assert.Equal(t, "Cardiology", resp.Providers[0].Specialty)
}

func TestReplaceAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	date := futureDatetime(t)[:10]

	rec := env.do(t, http.MethodPut, fmt.Sprintf("/providers/%s/availability", env.providerID), AvailabilityRequest{
		Date: date,
		Slots: []AvailabilitySlot{
			{Time: "09:00"},
			{Time: "09:30"},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/providers/%s/availability", env.providerID), AvailabilityRequest{
		Date:  date,
		Slots: []AvailabilitySlot{{Time: "25:99"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
