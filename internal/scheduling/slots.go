package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// SlotGenerator derives candidate bookable slots from the working-hours
// template and the set of already-confirmed bookings. It is pure and
// read-only: output is a point-in-time snapshot, not a reservation guarantee.
type SlotGenerator struct {
	hours WorkingHours
}

func NewSlotGenerator(hours WorkingHours) *SlotGenerator {
	return &SlotGenerator{hours: hours}
}

// Generate enumerates every slot for the provider between from and to
// (inclusive, calendar days), ascending by date then time. Non-business days
// are skipped. A slot is marked booked only on exact datetime equality with
// a confirmed appointment; durations are aligned to the granularity, so
// interval overlap is not checked.
func (g *SlotGenerator) Generate(providerID uuid.UUID, from, to time.Time, confirmed []Appointment) []Slot {
	booked := make(map[int64]bool, len(confirmed))
	for _, a := range confirmed {
		if a.Status == StatusConfirmed {
			booked[a.ScheduledAt.Unix()] = true
		}
	}

	step := time.Duration(g.hours.SlotMinutes) * time.Minute
	var slots []Slot

	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())

	for !day.After(last) {
		if g.businessDay(day) {
			start := time.Date(day.Year(), day.Month(), day.Day(), g.hours.StartHour, 0, 0, 0, day.Location())
			end := time.Date(day.Year(), day.Month(), day.Day(), g.hours.EndHour, 0, 0, 0, day.Location())

			for at := start; at.Before(end); at = at.Add(step) {
				slots = append(slots, Slot{
					ProviderID: providerID,
					StartAt:    at,
					Duration:   g.hours.SlotMinutes,
					Booked:     booked[at.Unix()],
				})
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return slots
}

// Open filters out booked slots and applies the configured result cap,
// keeping generation order. The cap is a presentation policy, not a
// business rule.
func (g *SlotGenerator) Open(slots []Slot) []Slot {
	open := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Booked {
			continue
		}
		open = append(open, s)
		if g.hours.MaxSlots > 0 && len(open) >= g.hours.MaxSlots {
			break
		}
	}
	return open
}

func (g *SlotGenerator) businessDay(day time.Time) bool {
	if g.hours.IncludeWeekends {
		return true
	}
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
