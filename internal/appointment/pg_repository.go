package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vetcal/clinic-scheduling/internal/history"
	"github.com/vetcal/clinic-scheduling/internal/schedule"
)

// DB is the slice of pgxpool.Pool the repository needs; pgxmock pools satisfy
// it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
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

const appointmentColumns = `id, tenant_id, professional_id, client_id, pet_id, specialty_id,
	date, start_minutes, duration_minutes, status, notes, cancellation_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var start int
	var status string

	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.ProfessionalID,
		&a.ClientID,
		&a.PetID,
		&a.SpecialtyID,
		&a.Date,
		&start,
		&a.DurationMinutes,
		&status,
		&a.Notes,
		&a.CancellationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = schedule.TimeOfDay(start)
	a.Status = Status(status)
	return &a, nil
}

// isOverlapViolation matches the appointments_no_overlap exclusion constraint
// (and any unique fallback), the commit-time backstop for the booking lock.
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23P01" || pgErr.Code == "23505"
}

func (r *PgRepository) GetProfessional(ctx context.Context, tenantID, id uuid.UUID) (*schedule.Professional, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM professionals
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	var p schedule.Professional
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetClient(ctx context.Context, tenantID, id uuid.UUID) (*Client, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name
		FROM clients
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	var c Client
	err := row.Scan(&c.ID, &c.TenantID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PgRepository) GetPet(ctx context.Context, tenantID, id uuid.UUID) (*Pet, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, client_id, name
		FROM pets
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	var p Pet
	err := row.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListForProfessionalOnDate(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND professional_id = $2 AND date = $3
		ORDER BY start_minutes
	`, tenantID, professionalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) HasConflict(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time, start, end schedule.TimeOfDay, excludeID *uuid.UUID) (bool, error) {
	row := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE tenant_id = $1 AND professional_id = $2 AND date = $3
			  AND status <> 'cancelled'
			  AND start_minutes < $5
			  AND $4 < start_minutes + duration_minutes
			  AND ($6::uuid IS NULL OR id <> $6)
		)
	`, tenantID, professionalID, date, int(start), int(end), excludeID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) CreateWithHistory(ctx context.Context, appt Appointment, entry history.Entry) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, tenant_id, professional_id, client_id, pet_id, specialty_id,
			date, start_minutes, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.TenantID, appt.ProfessionalID, appt.ClientID, appt.PetID, appt.SpecialtyID,
		appt.Date, int(appt.Start), appt.DurationMinutes, string(appt.Status), appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		if isOverlapViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	entry.AppointmentID = created.ID
	if err := history.Insert(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isOverlapViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateStatusWithHistory(ctx context.Context, tenantID, id uuid.UUID, from, to Status, cancellationReason *string, entry history.Entry) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Conditional on the source status so a concurrent transition loses here
	// rather than overwriting.
	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $4,
		    cancellation_reason = COALESCE($5, cancellation_reason),
		    updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = $3
		RETURNING `+appointmentColumns+`
	`, tenantID, id, string(from), string(to), cancellationReason)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	entry.AppointmentID = updated.ID
	if err := history.Insert(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) UpdateFieldsWithHistory(ctx context.Context, appt Appointment, entry history.Entry) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET professional_id = $3,
		    specialty_id = $4,
		    date = $5,
		    start_minutes = $6,
		    duration_minutes = $7,
		    notes = $8,
		    updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+appointmentColumns+`
	`, appt.TenantID, appt.ID, appt.ProfessionalID, appt.SpecialtyID,
		appt.Date, int(appt.Start), appt.DurationMinutes, appt.Notes)

	updated, err := scanAppointment(row)
	if err != nil {
		if isOverlapViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	entry.AppointmentID = updated.ID
	if err := history.Insert(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isOverlapViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]history.Entry, error) {
	return history.ListByAppointment(ctx, r.db, appointmentID)
}
