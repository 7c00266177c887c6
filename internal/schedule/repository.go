package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrClinicConfigMissing  = errors.New("clinic configuration not found")
	ErrInvalidClinicConfig  = errors.New("clinic configuration has non-positive durations")
	ErrInvalidBlockRange    = errors.New("block end must be after block start")
)

// Repository contains all DB interactions needed by the service. Everything is
// tenant scoped; callers never reach rows outside their own tenant.
type Repository interface {
	GetProfessional(ctx context.Context, tenantID, id uuid.UUID) (*Professional, error)
	GetClinicConfig(ctx context.Context, tenantID uuid.UUID) (*ClinicConfig, error)

	// GetWeeklySchedule returns nil (no error) when the professional has no
	// row for that weekday: not working that day is not a failure.
	GetWeeklySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, weekday time.Weekday) (*WeeklySchedule, error)

	ListBlocksOverlapping(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]Block, error)
	ListBookedIntervals(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]BookedInterval, error)

	CreateBlock(ctx context.Context, b Block) (uuid.UUID, error)
	DeleteBlock(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
}
