package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vetcal/clinic-scheduling/internal/appointment"
	"github.com/vetcal/clinic-scheduling/internal/history"
	"github.com/vetcal/clinic-scheduling/internal/schedule"
)

// ScheduleService is what the handlers need from the schedule engine.
type ScheduleService interface {
	AvailableSlots(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]schedule.Slot, error)
	CreateBlock(ctx context.Context, tenantID, professionalID uuid.UUID, start, end time.Time, reason *string) (uuid.UUID, error)
	RemoveBlock(ctx context.Context, tenantID, blockID uuid.UUID) (bool, error)
	ListBlocks(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]schedule.Block, error)
}

// AppointmentService is what the handlers need from the appointment engine.
type AppointmentService interface {
	Create(ctx context.Context, tenantID uuid.UUID, params appointment.CreateParams, actor *uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*appointment.Appointment, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, params appointment.UpdateParams, actor *uuid.UUID) (*appointment.Appointment, error)
	Confirm(ctx context.Context, tenantID, id uuid.UUID, actor *uuid.UUID) (*appointment.Appointment, error)
	Complete(ctx context.Context, tenantID, id uuid.UUID, actor *uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, tenantID, id uuid.UUID, reason *string, actor *uuid.UUID) (*appointment.Appointment, error)
	History(ctx context.Context, tenantID, id uuid.UUID) ([]history.Entry, error)
	ListForProfessional(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
}

type RouterConfig struct {
	Schedules    ScheduleService
	Appointments AppointmentService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything below requires a tenant
	r.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		r.Get("/professionals/{id}/slots", availableSlotsHandler(cfg.Schedules))
		r.Get("/professionals/{id}/appointments", listProfessionalAppointmentsHandler(cfg.Appointments))
		r.Get("/professionals/{id}/blocks", listBlocksHandler(cfg.Schedules))

		r.Post("/blocks", createBlockHandler(cfg.Schedules))
		r.Delete("/blocks/{id}", removeBlockHandler(cfg.Schedules))

		r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}/history", appointmentHistoryHandler(cfg.Appointments))
	})

	return r
}
