package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetcal/clinic-scheduling/internal/schedule"
)

// Status is the closed set of appointment lifecycle states.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions is the full state machine. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCompleted, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

type Appointment struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	ProfessionalID     uuid.UUID
	ClientID           uuid.UUID
	PetID              uuid.UUID
	SpecialtyID        *uuid.UUID
	Date               time.Time
	Start              schedule.TimeOfDay
	DurationMinutes    int
	Status             Status
	Notes              *string
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// End is the exclusive end of the occupied interval.
func (a *Appointment) End() schedule.TimeOfDay {
	return a.Start.Add(a.DurationMinutes)
}

// CreateParams is the input for booking a new appointment.
type CreateParams struct {
	ProfessionalID  uuid.UUID
	ClientID        uuid.UUID
	PetID           uuid.UUID
	SpecialtyID     *uuid.UUID
	Date            time.Time
	Start           schedule.TimeOfDay
	DurationMinutes int
	Notes           *string
}

// UpdateParams carries a partial update; nil fields are left untouched.
// Changing any of Professional/Date/Start/Duration re-runs the full booking
// legality checks against the new values.
type UpdateParams struct {
	ProfessionalID  *uuid.UUID
	SpecialtyID     *uuid.UUID
	Date            *time.Time
	Start           *schedule.TimeOfDay
	DurationMinutes *int
	Notes           *string
}

// Reschedules reports whether the patch moves the appointment in time or to
// another professional.
func (p UpdateParams) Reschedules() bool {
	return p.ProfessionalID != nil || p.Date != nil || p.Start != nil || p.DurationMinutes != nil
}

// Tenant-scoped references validated before booking. The owning records live
// with external collaborators; only existence matters here.

type Client struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
}

type Pet struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	ClientID uuid.UUID
	Name     string
}
