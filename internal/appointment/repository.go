package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vetcal/clinic-scheduling/internal/history"
	"github.com/vetcal/clinic-scheduling/internal/schedule"
)

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrPetNotFound          = errors.New("pet not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	ErrOutsideClinicHours = errors.New("appointment time is outside clinic hours")
	ErrInvalidDuration    = errors.New("appointment duration must be positive")
	ErrSlotBlocked        = errors.New("professional is blocked during the requested time")
	ErrSlotConflict       = errors.New("time slot already booked")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyCancelled  = errors.New("appointment is already cancelled")
)

// Repository contains all DB interactions needed by the service. Write
// methods that take a history entry persist the appointment mutation and the
// entry as one transaction; neither survives without the other.
type Repository interface {
	GetProfessional(ctx context.Context, tenantID, id uuid.UUID) (*schedule.Professional, error)
	GetClient(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	GetPet(ctx context.Context, tenantID, id uuid.UUID) (*Pet, error)

	GetAppointment(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error)
	ListForProfessionalOnDate(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]Appointment, error)

	// HasConflict reports whether any non-cancelled appointment for the
	// professional overlaps [start, end) on the date. excludeID skips the row
	// being rescheduled.
	HasConflict(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time, start, end schedule.TimeOfDay, excludeID *uuid.UUID) (bool, error)

	CreateWithHistory(ctx context.Context, appt Appointment, entry history.Entry) (*Appointment, error)
	UpdateStatusWithHistory(ctx context.Context, tenantID, id uuid.UUID, from, to Status, cancellationReason *string, entry history.Entry) (*Appointment, error)
	UpdateFieldsWithHistory(ctx context.Context, appt Appointment, entry history.Entry) (*Appointment, error)

	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]history.Entry, error)
}
