package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	db DB
}

func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

const appointmentColumns = `id, patient_id, provider_id, scheduled_at, duration, symptoms, urgency, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.ScheduledAt,
		&a.Duration,
		&a.Symptoms,
		&a.Urgency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgStore) GetConfirmedAt(ctx context.Context, providerID uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND scheduled_at = $2 AND status = 'confirmed'
	`, providerID, at)
	return scanAppointment(row)
}

func (r *PgStore) ListConfirmedInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND scheduled_at >= $2 AND scheduled_at < $3
		  AND status = 'confirmed'
		ORDER BY scheduled_at
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// CreateAppointment inserts a confirmed booking. The partial unique index on
// (provider_id, scheduled_at) WHERE status = 'confirmed' is the correctness
// backstop beneath the application-level lock; a violation surfaces as
// ErrSlotTaken.
func (r *PgStore) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, scheduled_at, duration, symptoms, urgency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.ProviderID, a.ScheduledAt, a.Duration, a.Symptoms, a.Urgency, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgStore) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgStore) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		ORDER BY scheduled_at ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgStore) ReplaceAvailability(ctx context.Context, providerID uuid.UUID, day time.Time, slots []AvailabilitySlot) error {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	_, err := r.db.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE provider_id = $1 AND start_at >= $2 AND start_at < $3
	`, providerID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}

	for _, s := range slots {
		_, err := r.db.Exec(ctx, `
			INSERT INTO availability_slots (id, provider_id, start_at, duration, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, uuid.New(), s.ProviderID, s.StartAt, s.Duration)
		if err != nil {
			return fmt.Errorf("insert availability: %w", err)
		}
	}

	return nil
}

func (r *PgStore) ListAvailabilityForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]AvailabilitySlot, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, start_at, duration, created_at, updated_at
		FROM availability_slots
		WHERE provider_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at
	`, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		var s AvailabilitySlot
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.StartAt, &s.Duration, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
