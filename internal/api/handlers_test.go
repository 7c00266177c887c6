package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetcal/clinic-scheduling/internal/appointment"
	"github.com/vetcal/clinic-scheduling/internal/history"
	"github.com/vetcal/clinic-scheduling/internal/schedule"
)

type stubScheduleService struct {
	slots    []schedule.Slot
	slotsErr error
	blockID  uuid.UUID
	blockErr error
	removed  bool
	blocks   []schedule.Block
}

func (s *stubScheduleService) AvailableSlots(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]schedule.Slot, error) {
	return s.slots, s.slotsErr
}

func (s *stubScheduleService) CreateBlock(_ context.Context, _, _ uuid.UUID, _, _ time.Time, _ *string) (uuid.UUID, error) {
	return s.blockID, s.blockErr
}

func (s *stubScheduleService) RemoveBlock(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return s.removed, nil
}

func (s *stubScheduleService) ListBlocks(_ context.Context, _, _ uuid.UUID, _, _ time.Time) ([]schedule.Block, error) {
	return s.blocks, nil
}

type stubAppointmentService struct {
	appt    *appointment.Appointment
	err     error
	entries []history.Entry

	lastCreateTenant uuid.UUID
	lastCreateActor  *uuid.UUID
	lastCancelReason *string
}

func (s *stubAppointmentService) Create(_ context.Context, tenantID uuid.UUID, _ appointment.CreateParams, actor *uuid.UUID) (*appointment.Appointment, error) {
	s.lastCreateTenant = tenantID
	s.lastCreateActor = actor
	return s.appt, s.err
}

func (s *stubAppointmentService) Get(_ context.Context, _, _ uuid.UUID) (*appointment.Appointment, error) {
	return s.appt, s.err
}

func (s *stubAppointmentService) Update(_ context.Context, _, _ uuid.UUID, _ appointment.UpdateParams, _ *uuid.UUID) (*appointment.Appointment, error) {
	return s.appt, s.err
}

func (s *stubAppointmentService) Confirm(_ context.Context, _, _ uuid.UUID, _ *uuid.UUID) (*appointment.Appointment, error) {
	return s.appt, s.err
}

func (s *stubAppointmentService) Complete(_ context.Context, _, _ uuid.UUID, _ *uuid.UUID) (*appointment.Appointment, error) {
	return s.appt, s.err
}

func (s *stubAppointmentService) Cancel(_ context.Context, _, _ uuid.UUID, reason *string, _ *uuid.UUID) (*appointment.Appointment, error) {
	s.lastCancelReason = reason
	return s.appt, s.err
}

func (s *stubAppointmentService) History(_ context.Context, _, _ uuid.UUID) ([]history.Entry, error) {
	return s.entries, s.err
}

func (s *stubAppointmentService) ListForProfessional(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]appointment.Appointment, error) {
	if s.appt == nil {
		return nil, s.err
	}
	return []appointment.Appointment{*s.appt}, s.err
}

func newTestRouter(sched ScheduleService, appts AppointmentService) http.Handler {
	return NewRouter(RouterConfig{
		Schedules:    sched,
		Appointments: appts,
		Env:          "test",
		Version:      "test",
	})
}

func doRequest(t *testing.T, h http.Handler, method, path string, tenantID *uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if tenantID != nil {
		req.Header.Set("X-Tenant-ID", tenantID.String())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleAppointment(tenantID uuid.UUID) *appointment.Appointment {
	return &appointment.Appointment{
		ID:              uuid.New(),
		TenantID:        tenantID,
		ProfessionalID:  uuid.New(),
		ClientID:        uuid.New(),
		PetID:           uuid.New(),
		Date:            time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Start:           schedule.TimeOfDay(10 * 60),
		DurationMinutes: 30,
		Status:          appointment.StatusScheduled,
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	h := newTestRouter(&stubScheduleService{}, &stubAppointmentService{})

	rec := doRequest(t, h, http.MethodGet, "/appointments/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_tenant", resp.Error)
}

func TestTenantHeaderMustBeUUID(t *testing.T) {
	h := newTestRouter(&stubScheduleService{}, &stubAppointmentService{})

	req := httptest.NewRequest(http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	req.Header.Set("X-Tenant-ID", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAvailableSlotsResponseShape(t *testing.T) {
	tenantID := uuid.New()
	sched := &stubScheduleService{slots: []schedule.Slot{
		{Start: schedule.TimeOfDay(9 * 60), DurationMinutes: 30},
		{Start: schedule.TimeOfDay(9*60 + 15), DurationMinutes: 30},
	}}
	h := newTestRouter(sched, &stubAppointmentService{})

	path := fmt.Sprintf("/professionals/%s/slots?date=2025-06-02", uuid.NewString())
	rec := doRequest(t, h, http.MethodGet, path, &tenantID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "09:00", resp[0].StartTime)
	assert.Equal(t, "09:15", resp[1].StartTime)
	assert.Equal(t, 30, resp[0].DurationMinutes)
}

func TestAvailableSlotsRejectsBadDate(t *testing.T) {
	tenantID := uuid.New()
	h := newTestRouter(&stubScheduleService{}, &stubAppointmentService{})

	path := fmt.Sprintf("/professionals/%s/slots?date=junk", uuid.NewString())
	rec := doRequest(t, h, http.MethodGet, path, &tenantID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAppointmentReturns201(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubAppointmentService{appt: sampleAppointment(tenantID)}
	h := newTestRouter(&stubScheduleService{}, svc)

	body := CreateAppointmentRequest{
		ProfessionalID:  uuid.NewString(),
		ClientID:        uuid.NewString(),
		PetID:           uuid.NewString(),
		AppointmentDate: "2025-06-02",
		AppointmentTime: "10:00",
	}
	rec := doRequest(t, h, http.MethodPost, "/appointments", &tenantID, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, "10:00", resp.AppointmentTime)
	assert.Equal(t, tenantID, svc.lastCreateTenant)
}

func TestCreateAppointmentConflictMapsTo409(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubAppointmentService{err: appointment.ErrSlotConflict}
	h := newTestRouter(&stubScheduleService{}, svc)

	body := CreateAppointmentRequest{
		ProfessionalID:  uuid.NewString(),
		ClientID:        uuid.NewString(),
		PetID:           uuid.NewString(),
		AppointmentDate: "2025-06-02",
		AppointmentTime: "10:00",
	}
	rec := doRequest(t, h, http.MethodPost, "/appointments", &tenantID, body)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_conflict", resp.Error)
}

func TestCreateAppointmentStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"professional missing", appointment.ErrProfessionalNotFound, http.StatusNotFound, "professional_not_found"},
		{"outside hours", appointment.ErrOutsideClinicHours, http.StatusUnprocessableEntity, "outside_clinic_hours"},
		{"bad duration", appointment.ErrInvalidDuration, http.StatusUnprocessableEntity, "invalid_duration"},
		{"slot blocked", appointment.ErrSlotBlocked, http.StatusConflict, "slot_blocked"},
	}

	tenantID := uuid.New()
	body := CreateAppointmentRequest{
		ProfessionalID:  uuid.NewString(),
		ClientID:        uuid.NewString(),
		PetID:           uuid.NewString(),
		AppointmentDate: "2025-06-02",
		AppointmentTime: "10:00",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&stubScheduleService{}, &stubAppointmentService{err: tt.err})

			rec := doRequest(t, h, http.MethodPost, "/appointments", &tenantID, body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Error)
		})
	}
}

func TestCancelPassesReasonThrough(t *testing.T) {
	tenantID := uuid.New()
	appt := sampleAppointment(tenantID)
	appt.Status = appointment.StatusCancelled
	svc := &stubAppointmentService{appt: appt}
	h := newTestRouter(&stubScheduleService{}, svc)

	reason := "client called to cancel"
	path := "/appointments/" + appt.ID.String() + "/cancel"
	rec := doRequest(t, h, http.MethodPost, path, &tenantID, CancelAppointmentRequest{Reason: &reason})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, svc.lastCancelReason)
	assert.Equal(t, reason, *svc.lastCancelReason)
}

func TestCancelWithoutBodyIsAccepted(t *testing.T) {
	tenantID := uuid.New()
	appt := sampleAppointment(tenantID)
	appt.Status = appointment.StatusCancelled
	svc := &stubAppointmentService{appt: appt}
	h := newTestRouter(&stubScheduleService{}, svc)

	req := httptest.NewRequest(http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastCancelReason)
}

func TestConfirmInvalidTransitionMapsTo409(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubAppointmentService{err: appointment.ErrInvalidTransition}
	h := newTestRouter(&stubScheduleService{}, svc)

	path := "/appointments/" + uuid.NewString() + "/confirm"
	rec := doRequest(t, h, http.MethodPost, path, &tenantID, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_status_transition", resp.Error)
}

func TestHistoryEndpointReturnsEntries(t *testing.T) {
	tenantID := uuid.New()
	apptID := uuid.New()
	prior := "scheduled"
	svc := &stubAppointmentService{entries: []history.Entry{
		{ID: 1, AppointmentID: apptID, NewStatus: "scheduled", CreatedAt: time.Now()},
		{ID: 2, AppointmentID: apptID, PriorStatus: &prior, NewStatus: "confirmed", CreatedAt: time.Now()},
	}}
	h := newTestRouter(&stubScheduleService{}, svc)

	rec := doRequest(t, h, http.MethodGet, "/appointments/"+apptID.String()+"/history", &tenantID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []HistoryEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "scheduled", resp[0].NewStatus)
	assert.Equal(t, "confirmed", resp[1].NewStatus)
	require.NotNil(t, resp[1].PriorStatus)
	assert.Equal(t, "scheduled", *resp[1].PriorStatus)
}

func TestRemoveBlockReportsRemoved(t *testing.T) {
	tenantID := uuid.New()
	h := newTestRouter(&stubScheduleService{removed: true}, &stubAppointmentService{})

	rec := doRequest(t, h, http.MethodDelete, "/blocks/"+uuid.NewString(), &tenantID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["removed"])
}

func TestInvalidUUIDParamRejected(t *testing.T) {
	tenantID := uuid.New()
	h := newTestRouter(&stubScheduleService{}, &stubAppointmentService{})

	rec := doRequest(t, h, http.MethodGet, "/appointments/not-a-uuid", &tenantID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
