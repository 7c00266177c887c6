// Package history is the append-only log of appointment state changes. Rows
// are inserted once per transition, inside the same transaction that mutates
// the appointment, and are never updated or deleted.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Entry is one immutable transition record. PriorStatus is nil for the
// creation entry. Changes carries an optional JSON diff payload.
type Entry struct {
	ID            int64
	AppointmentID uuid.UUID
	ActorUserID   *uuid.UUID
	PriorStatus   *string
	NewStatus     string
	Changes       []byte
	CreatedAt     time.Time
}

// Executor is satisfied by pgx pools, connections, and transactions, so
// inserts can join the caller's transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Querier is the read side, satisfied by the same types.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var errEmptyStatus = errors.New("history entry requires a new status")

// Insert appends one entry using the supplied executor.
func Insert(ctx context.Context, q Executor, e Entry) error {
	if e.NewStatus == "" {
		return errEmptyStatus
	}

	_, err := q.Exec(ctx, `
		INSERT INTO appointment_history (appointment_id, actor_user_id, prior_status, new_status, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, e.AppointmentID, e.ActorUserID, e.PriorStatus, e.NewStatus, e.Changes)
	return err
}

// ListByAppointment returns an appointment's transitions oldest first. This is
// the read-only surface reporting consumers use.
func ListByAppointment(ctx context.Context, q Querier, appointmentID uuid.UUID) ([]Entry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, appointment_id, actor_user_id, prior_status, new_status, changes, created_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.ActorUserID, &e.PriorStatus, &e.NewStatus, &e.Changes, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
