package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a clock time expressed as minutes since midnight. Slot
// arithmetic stays integer-only; the date component lives separately.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// At anchors the clock time on the given calendar date, in the date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, date.Location())
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

type Professional struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OpenHours is one weekday's opening window. Weekdays without a row are closed.
type OpenHours struct {
	Opens  TimeOfDay
	Closes TimeOfDay
}

// ClinicConfig holds the per-tenant operating rules. Exactly one per tenant.
type ClinicConfig struct {
	TenantID                uuid.UUID
	DefaultDurationMinutes  int
	SlotIntervalMinutes     int
	CancellationNoticeHours int
	Hours                   map[time.Weekday]OpenHours
}

// WeeklySchedule is a professional's recurring availability for one weekday.
// DurationMinutes, when set, overrides the clinic's default slot duration.
type WeeklySchedule struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	ProfessionalID  uuid.UUID
	Weekday         time.Weekday
	Start           TimeOfDay
	End             TimeOfDay
	Available       bool
	DurationMinutes *int
}

// Block is an ad-hoc unavailability window. Blocks may stack; overlap is
// resolved by union when slots are computed.
type Block struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ProfessionalID uuid.UUID
	StartsAt       time.Time
	EndsAt         time.Time
	Reason         *string
	CreatedAt      time.Time
}

// Slot is a candidate bookable start time for a professional on some date.
type Slot struct {
	Start           TimeOfDay
	DurationMinutes int
}

// BookedInterval is the occupied window of a non-cancelled appointment.
type BookedInterval struct {
	Start TimeOfDay
	End   TimeOfDay
}
