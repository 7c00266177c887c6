package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetcal/clinic-scheduling/internal/history"
	redisclient "github.com/vetcal/clinic-scheduling/internal/redis"
	"github.com/vetcal/clinic-scheduling/internal/schedule"
)

// Scheduler is the slice of the schedule service the appointment service
// needs for temporal legality checks.
type Scheduler interface {
	IsWithinClinicHours(ctx context.Context, tenantID uuid.UUID, date time.Time, at schedule.TimeOfDay) (bool, error)
	HasBlockOverlap(ctx context.Context, tenantID, professionalID uuid.UUID, start, end time.Time) (bool, error)
	DefaultDuration(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// Config tunes the service. CompleteFrom is the set of states Complete
// accepts as source; it defaults to both scheduled and confirmed because some
// clinics skip the confirmation step.
type Config struct {
	LockRetries    int
	LockRetryDelay time.Duration
	CompleteFrom   []Status
}

// Service owns the appointment lifecycle state machine. Every state-changing
// operation writes exactly one appointment row and one history row as a
// single transaction.
type Service struct {
	repo      Repository
	scheduler Scheduler
	locker    redisclient.Locker
	notifier  Notifier
	cfg       Config
}

func NewService(repo Repository, scheduler Scheduler, locker redisclient.Locker, notifier Notifier, cfg Config) *Service {
	if cfg.LockRetries < 1 {
		cfg.LockRetries = 3
	}
	if cfg.LockRetryDelay <= 0 {
		cfg.LockRetryDelay = 50 * time.Millisecond
	}
	if len(cfg.CompleteFrom) == 0 {
		cfg.CompleteFrom = []Status{StatusScheduled, StatusConfirmed}
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		locker:    locker,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Create books a new appointment. The conflict check and the insert run
// inside a per-professional lock so two concurrent requests cannot both
// observe a free slot; the DB exclusion constraint backs the lock up at
// commit time.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, params CreateParams, actor *uuid.UUID) (*Appointment, error) {
	if _, err := s.repo.GetProfessional(ctx, tenantID, params.ProfessionalID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetClient(ctx, tenantID, params.ClientID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPet(ctx, tenantID, params.PetID); err != nil {
		return nil, err
	}

	if params.DurationMinutes < 0 {
		return nil, ErrInvalidDuration
	}
	if params.DurationMinutes == 0 {
		d, err := s.scheduler.DefaultDuration(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		params.DurationMinutes = d
	}

	open, err := s.scheduler.IsWithinClinicHours(ctx, tenantID, params.Date, params.Start)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrOutsideClinicHours
	}

	var created *Appointment
	err = s.withProfessionalLock(ctx, params.ProfessionalID, func(lockCtx context.Context) error {
		end := params.Start.Add(params.DurationMinutes)

		blocked, err := s.scheduler.HasBlockOverlap(lockCtx, tenantID, params.ProfessionalID,
			params.Start.At(params.Date), end.At(params.Date))
		if err != nil {
			return fmt.Errorf("check blocks: %w", err)
		}
		if blocked {
			return ErrSlotBlocked
		}

		conflict, err := s.repo.HasConflict(lockCtx, tenantID, params.ProfessionalID, params.Date, params.Start, end, nil)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if conflict {
			return ErrSlotConflict
		}

		appt := Appointment{
			TenantID:        tenantID,
			ProfessionalID:  params.ProfessionalID,
			ClientID:        params.ClientID,
			PetID:           params.PetID,
			SpecialtyID:     params.SpecialtyID,
			Date:            params.Date,
			Start:           params.Start,
			DurationMinutes: params.DurationMinutes,
			Status:          StatusScheduled,
			Notes:           params.Notes,
		}

		changes, err := marshalChanges(map[string]any{
			"professional_id": params.ProfessionalID,
			"date":            params.Date.Format("2006-01-02"),
			"start":           params.Start.String(),
		})
		if err != nil {
			return err
		}

		created, err = s.repo.CreateWithHistory(lockCtx, appt, history.Entry{
			ActorUserID: actor,
			NewStatus:   string(StatusScheduled),
			Changes:     changes,
		})
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.AppointmentScheduled(ctx, created)
	return created, nil
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, tenantID, id uuid.UUID, actor *uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: only appointments with status 'scheduled' can be confirmed", ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateStatusWithHistory(ctx, tenantID, id, StatusScheduled, StatusConfirmed, nil, history.Entry{
		ActorUserID: actor,
		PriorStatus: statusPtr(StatusScheduled),
		NewStatus:   string(StatusConfirmed),
	})
	if err != nil {
		return nil, err
	}

	s.notifier.AppointmentConfirmed(ctx, updated)
	return updated, nil
}

// Complete marks an appointment as completed. The allowed source states come
// from the service config.
func (s *Service) Complete(ctx context.Context, tenantID, id uuid.UUID, actor *uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !s.completeAllowedFrom(appt.Status) {
		return nil, fmt.Errorf("%w: cannot complete an appointment with status '%s'", ErrInvalidTransition, appt.Status)
	}

	return s.repo.UpdateStatusWithHistory(ctx, tenantID, id, appt.Status, StatusCompleted, nil, history.Entry{
		ActorUserID: actor,
		PriorStatus: statusPtr(appt.Status),
		NewStatus:   string(StatusCompleted),
	})
}

// Cancel is terminal. Cancelling an already-cancelled appointment fails;
// cancellation never deletes the row.
func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID, reason *string, actor *uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !appt.Status.CanTransitionTo(StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel an appointment with status '%s'", ErrInvalidTransition, appt.Status)
	}

	changes := map[string]any{}
	if reason != nil {
		changes["cancellation_reason"] = *reason
	}
	changesJSON, err := marshalChanges(changes)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatusWithHistory(ctx, tenantID, id, appt.Status, StatusCancelled, reason, history.Entry{
		ActorUserID: actor,
		PriorStatus: statusPtr(appt.Status),
		NewStatus:   string(StatusCancelled),
		Changes:     changesJSON,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.AppointmentCancelled(ctx, updated)
	return updated, nil
}

// Update applies a partial update. Moving the appointment in time or to a
// different professional re-runs the full booking legality checks against the
// new values, under the target professional's lock.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, params UpdateParams, actor *uuid.UUID) (*Appointment, error) {
	current, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	next := *current
	changes := map[string]any{}

	if params.ProfessionalID != nil && *params.ProfessionalID != current.ProfessionalID {
		if _, err := s.repo.GetProfessional(ctx, tenantID, *params.ProfessionalID); err != nil {
			return nil, err
		}
		changes["professional_id"] = diff(current.ProfessionalID.String(), params.ProfessionalID.String())
		next.ProfessionalID = *params.ProfessionalID
	}
	if params.SpecialtyID != nil {
		next.SpecialtyID = params.SpecialtyID
	}
	if params.Date != nil && !params.Date.Equal(current.Date) {
		changes["date"] = diff(current.Date.Format("2006-01-02"), params.Date.Format("2006-01-02"))
		next.Date = *params.Date
	}
	if params.Start != nil && *params.Start != current.Start {
		changes["start"] = diff(current.Start.String(), params.Start.String())
		next.Start = *params.Start
	}
	if params.DurationMinutes != nil && *params.DurationMinutes != current.DurationMinutes {
		if *params.DurationMinutes <= 0 {
			return nil, ErrInvalidDuration
		}
		changes["duration_minutes"] = diff(current.DurationMinutes, *params.DurationMinutes)
		next.DurationMinutes = *params.DurationMinutes
	}
	if params.Notes != nil {
		changes["notes"] = diff(deref(current.Notes), *params.Notes)
		next.Notes = params.Notes
	}

	changesJSON, err := marshalChanges(changes)
	if err != nil {
		return nil, err
	}
	entry := history.Entry{
		ActorUserID: actor,
		PriorStatus: statusPtr(current.Status),
		NewStatus:   string(current.Status),
		Changes:     changesJSON,
	}

	if !params.Reschedules() {
		return s.repo.UpdateFieldsWithHistory(ctx, next, entry)
	}

	open, err := s.scheduler.IsWithinClinicHours(ctx, tenantID, next.Date, next.Start)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrOutsideClinicHours
	}

	var updated *Appointment
	err = s.withProfessionalLock(ctx, next.ProfessionalID, func(lockCtx context.Context) error {
		end := next.End()

		blocked, err := s.scheduler.HasBlockOverlap(lockCtx, tenantID, next.ProfessionalID,
			next.Start.At(next.Date), end.At(next.Date))
		if err != nil {
			return fmt.Errorf("check blocks: %w", err)
		}
		if blocked {
			return ErrSlotBlocked
		}

		conflict, err := s.repo.HasConflict(lockCtx, tenantID, next.ProfessionalID, next.Date, next.Start, end, &next.ID)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if conflict {
			return ErrSlotConflict
		}

		updated, err = s.repo.UpdateFieldsWithHistory(lockCtx, next, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns a tenant-scoped appointment.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, tenantID, id)
}

// ListForProfessional returns a professional's appointments on a date,
// ordered by start time.
func (s *Service) ListForProfessional(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.repo.ListForProfessionalOnDate(ctx, tenantID, professionalID, date)
}

// History returns the appointment's transition log, oldest first.
func (s *Service) History(ctx context.Context, tenantID, id uuid.UUID) ([]history.Entry, error) {
	if _, err := s.repo.GetAppointment(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// withProfessionalLock retries lock acquisition a bounded number of times.
// Persistent contention surfaces as a slot conflict: somebody else is booking
// this professional right now.
func (s *Service) withProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.cfg.LockRetries; attempt++ {
		err = s.locker.WithProfessionalLock(ctx, professionalID, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.LockRetryDelay):
		}
	}
	return ErrSlotConflict
}

func (s *Service) completeAllowedFrom(status Status) bool {
	for _, allowed := range s.cfg.CompleteFrom {
		if allowed == status {
			return true
		}
	}
	return false
}

func statusPtr(s Status) *string {
	str := string(s)
	return &str
}

func diff(from, to any) map[string]any {
	return map[string]any{"from": from, "to": to}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func marshalChanges(changes map[string]any) ([]byte, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshal history changes: %w", err)
	}
	return data, nil
}
