package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "patient_id", "provider_id", "scheduled_at", "duration",
	"symptoms", "urgency", "status", "created_at", "updated_at",
}

func appointmentRow(mock pgxmock.PgxPoolIface, a Appointment) *pgxmock.Rows {
	return mock.NewRows(appointmentCols).AddRow(
		a.ID, a.PatientID, a.ProviderID, a.ScheduledAt, a.Duration,
		a.Symptoms, a.Urgency, a.Status, a.CreatedAt, a.UpdatedAt,
	)
}

func sampleAppointment() Appointment {
	now := time.Now()
	return Appointment{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		ProviderID:  uuid.New(),
		ScheduledAt: now.Add(48 * time.Hour),
		Duration:    30,
		Symptoms:    "sore throat",
		Urgency:     UrgencyRoutine,
		Status:      StatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPgStoreCreateAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleAppointment()
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnRows(appointmentRow(mock, want))

	store := NewPgStore(mock)
	got, err := store.CreateAppointment(context.Background(), want)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, StatusConfirmed, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreCreateAppointmentUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// The partial unique index fires: surface the conflict, not a raw error.
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_provider_slot"})

	store := NewPgStore(mock)
	_, err = store.CreateAppointment(context.Background(), sampleAppointment())
	assert.ErrorIs(t, err, ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreGetConfirmedAtNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WillReturnError(pgx.ErrNoRows)

	store := NewPgStore(mock)
	_, err = store.GetConfirmedAt(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreUpdateAppointmentStatusCompareAndSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleAppointment()
	want.Status = StatusCancelled

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(want.ID, StatusCancelled, StatusConfirmed).
		WillReturnRows(appointmentRow(mock, want))

	store := NewPgStore(mock)
	got, err := store.UpdateAppointmentStatus(context.Background(), want.ID, StatusConfirmed, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreUpdateAppointmentStatusMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// No row in the expected from-status: the CAS missed.
	mock.ExpectQuery("UPDATE appointments").
		WillReturnError(pgx.ErrNoRows)

	store := NewPgStore(mock)
	_, err = store.UpdateAppointmentStatus(context.Background(), uuid.New(), StatusConfirmed, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreListConfirmedInRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	b := sampleAppointment()
	b.ProviderID = a.ProviderID
	b.ScheduledAt = a.ScheduledAt.Add(30 * time.Minute)

	rows := mock.NewRows(appointmentCols).
		AddRow(a.ID, a.PatientID, a.ProviderID, a.ScheduledAt, a.Duration, a.Symptoms, a.Urgency, a.Status, a.CreatedAt, a.UpdatedAt).
		AddRow(b.ID, b.PatientID, b.ProviderID, b.ScheduledAt, b.Duration, b.Symptoms, b.Urgency, b.Status, b.CreatedAt, b.UpdatedAt)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WillReturnRows(rows)

	store := NewPgStore(mock)
	got, err := store.ListConfirmedInRange(context.Background(), a.ProviderID, a.ScheduledAt.Add(-time.Hour), b.ScheduledAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreReplaceAvailability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	providerID := uuid.New()
	day := time.Date(2031, 3, 3, 0, 0, 0, 0, time.Local)

	mock.ExpectExec("DELETE FROM availability_slots").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO availability_slots").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPgStore(mock)
	err = store.ReplaceAvailability(context.Background(), providerID, day, []AvailabilitySlot{
		{ProviderID: providerID, StartAt: day.Add(9 * time.Hour), Duration: 30},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
