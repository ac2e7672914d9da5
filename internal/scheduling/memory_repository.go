package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs package tests and
// the local simulator; the check-and-insert in CreateAppointment mirrors the
// partial unique index of the Postgres store.
type MemoryStore struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]Appointment
	availability map[uuid.UUID][]AvailabilitySlot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[uuid.UUID]Appointment),
		availability: make(map[uuid.UUID][]AvailabilitySlot),
	}
}

func (m *MemoryStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryStore) GetConfirmedAt(ctx context.Context, providerID uuid.UUID, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a := m.confirmedAtLocked(providerID, at); a != nil {
		return a, nil
	}
	return nil, ErrAppointmentNotFound
}

func (m *MemoryStore) confirmedAtLocked(providerID uuid.UUID, at time.Time) *Appointment {
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Status == StatusConfirmed && a.ScheduledAt.Equal(at) {
			found := a
			return &found
		}
	}
	return nil
}

func (m *MemoryStore) ListConfirmedInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Status == StatusConfirmed &&
			!a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.Before(result[j].ScheduledAt) })
	return result, nil
}

func (m *MemoryStore) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Status == StatusConfirmed && m.confirmedAtLocked(a.ProviderID, a.ScheduledAt) != nil {
		return nil, ErrSlotTaken
	}

	now := time.Now()
	a.ID = uuid.New()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *MemoryStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryStore) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.After(result[j].ScheduledAt) })
	return result, nil
}

func (m *MemoryStore) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.ProviderID == providerID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.Before(result[j].ScheduledAt) })
	return result, nil
}

func (m *MemoryStore) ReplaceAvailability(ctx context.Context, providerID uuid.UUID, day time.Time, slots []AvailabilitySlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	kept := m.availability[providerID][:0]
	for _, s := range m.availability[providerID] {
		if s.StartAt.Before(dayStart) || !s.StartAt.Before(dayEnd) {
			kept = append(kept, s)
		}
	}

	now := time.Now()
	for _, s := range slots {
		s.ID = uuid.New()
		s.CreatedAt = now
		s.UpdatedAt = now
		kept = append(kept, s)
	}
	m.availability[providerID] = kept
	return nil
}

func (m *MemoryStore) ListAvailabilityForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]AvailabilitySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var result []AvailabilitySlot
	for _, s := range m.availability[providerID] {
		if !s.StartAt.Before(dayStart) && s.StartAt.Before(dayEnd) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

// LocalLocker serializes reservations per (provider, datetime) key inside a
// single process. It blocks rather than failing fast, so contending callers
// fall through to the confirmed-appointment recheck.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithReservationLock(ctx context.Context, providerID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("%s:%d", providerID, at.Unix())

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}
