package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetcal/clinic-scheduling/internal/history"
)

var appointmentRowColumns = []string{
	"id", "tenant_id", "professional_id", "client_id", "pet_id", "specialty_id",
	"date", "start_minutes", "duration_minutes", "status", "notes", "cancellation_reason",
	"created_at", "updated_at",
}

func appointmentRow(appt Appointment) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(appointmentRowColumns).AddRow(
		uuid.New(), appt.TenantID, appt.ProfessionalID, appt.ClientID, appt.PetID, nil,
		appt.Date, int(appt.Start), appt.DurationMinutes, string(appt.Status), nil, nil,
		now, now,
	)
}

// The insert statement binds 11 values and the history insert binds 5; exact
// values are covered by the returned row assertions.
func insertArgs() []any {
	args := make([]any, 11)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func historyArgs() []any {
	args := make([]any, 5)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func testAppointment() Appointment {
	return Appointment{
		TenantID:        uuid.New(),
		ProfessionalID:  uuid.New(),
		ClientID:        uuid.New(),
		PetID:           uuid.New(),
		Date:            time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Start:           600,
		DurationMinutes: 30,
		Status:          StatusScheduled,
	}
}

func TestPgCreateWithHistoryCommitsBothRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := testAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs()...).
		WillReturnRows(appointmentRow(appt))
	mock.ExpectExec("INSERT INTO appointment_history").
		WithArgs(historyArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	created, err := repo.CreateWithHistory(context.Background(), appt, history.Entry{NewStatus: "scheduled"})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, created.Status)
	assert.NotEqual(t, uuid.Nil, created.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateHistoryFailureRollsBackAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := testAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs()...).
		WillReturnRows(appointmentRow(appt))
	mock.ExpectExec("INSERT INTO appointment_history").
		WithArgs(historyArgs()...).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.CreateWithHistory(context.Background(), appt, history.Entry{NewStatus: "scheduled"})
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateMapsExclusionViolationToConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.CreateWithHistory(context.Background(), testAppointment(), history.Entry{NewStatus: "scheduled"})
	assert.ErrorIs(t, err, ErrSlotConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusLosesRaceToConcurrentTransition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID, apptID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(tenantID, apptID, "scheduled", "confirmed", (*string)(nil)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.UpdateStatusWithHistory(context.Background(), tenantID, apptID,
		StatusScheduled, StatusConfirmed, nil, history.Entry{NewStatus: "confirmed"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgHasConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID, professionalID := uuid.New(), uuid.New()
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(tenantID, professionalID, date, 600, 630, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPgRepository(mock)
	conflict, err := repo.HasConflict(context.Background(), tenantID, professionalID, date, 600, 630, nil)
	require.NoError(t, err)
	assert.True(t, conflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}
