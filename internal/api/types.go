package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SlotResponse struct {
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type CreateBlockRequest struct {
	ProfessionalID string  `json:"professional_id"`
	StartsAt       string  `json:"starts_at"` // RFC 3339
	EndsAt         string  `json:"ends_at"`   // RFC 3339
	Reason         *string `json:"reason,omitempty"`
}

type BlockResponse struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Reason         *string   `json:"reason,omitempty"`
}

type CreateAppointmentRequest struct {
	ProfessionalID  string  `json:"professional_id"`
	ClientID        string  `json:"client_id"`
	PetID           string  `json:"pet_id"`
	SpecialtyID     *string `json:"specialty_id,omitempty"`
	AppointmentDate string  `json:"appointment_date"` // 2006-01-02
	AppointmentTime string  `json:"appointment_time"` // 15:04
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	ProfessionalID  *string `json:"professional_id,omitempty"`
	SpecialtyID     *string `json:"specialty_id,omitempty"`
	AppointmentDate *string `json:"appointment_date,omitempty"`
	AppointmentTime *string `json:"appointment_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ProfessionalID     uuid.UUID  `json:"professional_id"`
	ClientID           uuid.UUID  `json:"client_id"`
	PetID              uuid.UUID  `json:"pet_id"`
	SpecialtyID        *uuid.UUID `json:"specialty_id,omitempty"`
	AppointmentDate    string     `json:"appointment_date"`
	AppointmentTime    string     `json:"appointment_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	Status             string     `json:"status"`
	Notes              *string    `json:"notes,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type HistoryEntryResponse struct {
	ID            int64           `json:"id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	ActorUserID   *uuid.UUID      `json:"actor_user_id,omitempty"`
	PriorStatus   *string         `json:"prior_status,omitempty"`
	NewStatus     string          `json:"new_status"`
	Changes       json.RawMessage `json:"changes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
