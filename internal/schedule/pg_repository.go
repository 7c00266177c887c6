package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgxpool.Pool the repository needs; pgxmock pools satisfy
// it in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) GetProfessional(ctx context.Context, tenantID, id uuid.UUID) (*Professional, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM professionals
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	var p Professional
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetClinicConfig(ctx context.Context, tenantID uuid.UUID) (*ClinicConfig, error) {
	row := r.db.QueryRow(ctx, `
		SELECT tenant_id, default_duration_minutes, slot_interval_minutes, cancellation_notice_hours
		FROM clinic_configurations
		WHERE tenant_id = $1
	`, tenantID)

	var cfg ClinicConfig
	err := row.Scan(&cfg.TenantID, &cfg.DefaultDurationMinutes, &cfg.SlotIntervalMinutes, &cfg.CancellationNoticeHours)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicConfigMissing
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT weekday, opens_minutes, closes_minutes
		FROM clinic_hours
		WHERE tenant_id = $1
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cfg.Hours = make(map[time.Weekday]OpenHours)
	for rows.Next() {
		var weekday, opens, closes int
		if err := rows.Scan(&weekday, &opens, &closes); err != nil {
			return nil, err
		}
		cfg.Hours[time.Weekday(weekday)] = OpenHours{
			Opens:  TimeOfDay(opens),
			Closes: TimeOfDay(closes),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (r *PgRepository) GetWeeklySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, weekday time.Weekday) (*WeeklySchedule, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, professional_id, weekday, start_minutes, end_minutes, is_available, duration_minutes
		FROM professional_schedules
		WHERE tenant_id = $1 AND professional_id = $2 AND weekday = $3
	`, tenantID, professionalID, int(weekday))

	var ws WeeklySchedule
	var wd, start, end int
	err := row.Scan(&ws.ID, &ws.TenantID, &ws.ProfessionalID, &wd, &start, &end, &ws.Available, &ws.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	ws.Weekday = time.Weekday(wd)
	ws.Start = TimeOfDay(start)
	ws.End = TimeOfDay(end)
	return &ws, nil
}

func (r *PgRepository) ListBlocksOverlapping(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]Block, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, professional_id, starts_at, ends_at, reason, created_at
		FROM schedule_blocks
		WHERE tenant_id = $1 AND professional_id = $2
		  AND starts_at < $4 AND $3 < ends_at
		ORDER BY starts_at
	`, tenantID, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.TenantID, &b.ProfessionalID, &b.StartsAt, &b.EndsAt, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListBookedIntervals(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]BookedInterval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_minutes, start_minutes + duration_minutes
		FROM appointments
		WHERE tenant_id = $1 AND professional_id = $2 AND date = $3
		  AND status <> 'cancelled'
		ORDER BY start_minutes
	`, tenantID, professionalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookedInterval
	for rows.Next() {
		var start, end int
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		result = append(result, BookedInterval{Start: TimeOfDay(start), End: TimeOfDay(end)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CreateBlock(ctx context.Context, b Block) (uuid.UUID, error) {
	id := uuid.New()

	_, err := r.db.Exec(ctx, `
		INSERT INTO schedule_blocks (id, tenant_id, professional_id, starts_at, ends_at, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, id, b.TenantID, b.ProfessionalID, b.StartsAt, b.EndsAt, b.Reason)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PgRepository) DeleteBlock(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM schedule_blocks
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
