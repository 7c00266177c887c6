package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service derives when a professional can legally be booked and manages
// ad-hoc unavailability blocks.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AvailableSlots computes the bookable slots for a professional on a date by
// intersecting clinic configuration, the professional's weekly availability,
// blocks, and existing non-cancelled appointments. An empty result is not an
// error: the professional simply does not work that day.
func (s *Service) AvailableSlots(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]Slot, error) {
	if _, err := s.repo.GetProfessional(ctx, tenantID, professionalID); err != nil {
		return nil, err
	}

	cfg, err := s.repo.GetClinicConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if cfg.SlotIntervalMinutes <= 0 || cfg.DefaultDurationMinutes <= 0 {
		return nil, ErrInvalidClinicConfig
	}

	ws, err := s.repo.GetWeeklySchedule(ctx, tenantID, professionalID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load weekly schedule: %w", err)
	}
	if ws == nil || !ws.Available {
		return nil, nil
	}

	duration := cfg.DefaultDurationMinutes
	if ws.DurationMinutes != nil && *ws.DurationMinutes > 0 {
		duration = *ws.DurationMinutes
	}

	dayStart := ws.Start.At(date)
	dayEnd := ws.End.At(date)

	blocks, err := s.repo.ListBlocksOverlapping(ctx, tenantID, professionalID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}

	booked, err := s.repo.ListBookedIntervals(ctx, tenantID, professionalID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked intervals: %w", err)
	}

	var slots []Slot
	for start := ws.Start; start.Add(duration) <= ws.End; start = start.Add(cfg.SlotIntervalMinutes) {
		end := start.Add(duration)

		if overlapsBlock(blocks, start.At(date), end.At(date)) {
			continue
		}
		if overlapsBooked(booked, start, end) {
			continue
		}

		slots = append(slots, Slot{Start: start, DurationMinutes: duration})
	}

	return slots, nil
}

// IsWithinClinicHours reports whether the instant falls inside the tenant's
// opening window for that weekday. It says nothing about the professional's
// own schedule or existing bookings.
func (s *Service) IsWithinClinicHours(ctx context.Context, tenantID uuid.UUID, date time.Time, at TimeOfDay) (bool, error) {
	cfg, err := s.repo.GetClinicConfig(ctx, tenantID)
	if err != nil {
		return false, err
	}

	hours, open := cfg.Hours[date.Weekday()]
	if !open {
		return false, nil
	}
	return at >= hours.Opens && at < hours.Closes, nil
}

// DefaultDuration returns the tenant's default appointment duration in
// minutes.
func (s *Service) DefaultDuration(ctx context.Context, tenantID uuid.UUID) (int, error) {
	cfg, err := s.repo.GetClinicConfig(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if cfg.DefaultDurationMinutes <= 0 {
		return 0, ErrInvalidClinicConfig
	}
	return cfg.DefaultDurationMinutes, nil
}

// HasBlockOverlap reports whether any block covers part of [start, end) for
// the professional.
func (s *Service) HasBlockOverlap(ctx context.Context, tenantID, professionalID uuid.UUID, start, end time.Time) (bool, error) {
	blocks, err := s.repo.ListBlocksOverlapping(ctx, tenantID, professionalID, start, end)
	if err != nil {
		return false, fmt.Errorf("load blocks: %w", err)
	}
	return len(blocks) > 0, nil
}

// CreateBlock records an ad-hoc unavailability window. Overlapping blocks are
// allowed; they union at read time.
func (s *Service) CreateBlock(ctx context.Context, tenantID, professionalID uuid.UUID, start, end time.Time, reason *string) (uuid.UUID, error) {
	if _, err := s.repo.GetProfessional(ctx, tenantID, professionalID); err != nil {
		return uuid.Nil, err
	}
	if !end.After(start) {
		return uuid.Nil, ErrInvalidBlockRange
	}

	id, err := s.repo.CreateBlock(ctx, Block{
		TenantID:       tenantID,
		ProfessionalID: professionalID,
		StartsAt:       start,
		EndsAt:         end,
		Reason:         reason,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create block: %w", err)
	}
	return id, nil
}

// RemoveBlock deletes a block. Removing a missing block returns false, not an
// error, so the operation is idempotent.
func (s *Service) RemoveBlock(ctx context.Context, tenantID, blockID uuid.UUID) (bool, error) {
	removed, err := s.repo.DeleteBlock(ctx, tenantID, blockID)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	return removed, nil
}

// ListBlocks returns the professional's blocks overlapping [from, to).
func (s *Service) ListBlocks(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]Block, error) {
	if _, err := s.repo.GetProfessional(ctx, tenantID, professionalID); err != nil {
		return nil, err
	}
	return s.repo.ListBlocksOverlapping(ctx, tenantID, professionalID, from, to)
}

// Half-open interval overlap: a.start < b.end && b.start < a.end.

func overlapsBlock(blocks []Block, start, end time.Time) bool {
	for _, b := range blocks {
		if b.StartsAt.Before(end) && start.Before(b.EndsAt) {
			return true
		}
	}
	return false
}

func overlapsBooked(booked []BookedInterval, start, end TimeOfDay) bool {
	for _, b := range booked {
		if b.Start < end && start < b.End {
			return true
		}
	}
	return false
}
