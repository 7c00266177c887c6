package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetcal/clinic-scheduling/internal/appointment"
	"github.com/vetcal/clinic-scheduling/internal/history"
	"github.com/vetcal/clinic-scheduling/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func tenantFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, ok := GetTenantID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_tenant", "request has no tenant context")
		return uuid.Nil, false
	}
	return tenantID, true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func availableSlotsHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		professionalID, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), tenantID, professionalID, date)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{
				StartTime:       s.Start.String(),
				DurationMinutes: s.DurationMinutes,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createBlockHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}

		var req CreateBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}

		start, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_starts_at", "starts_at must be RFC 3339")
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_ends_at", "ends_at must be RFC 3339")
			return
		}

		id, err := svc.CreateBlock(r.Context(), tenantID, professionalID, start, end, req.Reason)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BlockResponse{
			ID:             id,
			ProfessionalID: professionalID,
			StartsAt:       start,
			EndsAt:         end,
			Reason:         req.Reason,
		})
	}
}

func removeBlockHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		blockID, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		removed, err := svc.RemoveBlock(r.Context(), tenantID, blockID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	}
}

func listBlocksHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		professionalID, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}

		blocks, err := svc.ListBlocks(r.Context(), tenantID, professionalID, from, to.AddDate(0, 0, 1))
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]BlockResponse, 0, len(blocks))
		for _, b := range blocks {
			resp = append(resp, BlockResponse{
				ID:             b.ID,
				ProfessionalID: b.ProfessionalID,
				StartsAt:       b.StartsAt,
				EndsAt:         b.EndsAt,
				Reason:         b.Reason,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params, ok := buildCreateParams(w, req)
		if !ok {
			return
		}

		appt, err := svc.Create(r.Context(), tenantID, params, GetActorID(r.Context()))
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), tenantID, id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params, ok := buildUpdateParams(w, req)
		if !ok {
			return
		}

		appt, err := svc.Update(r.Context(), tenantID, id, params, GetActorID(r.Context()))
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Confirm(r.Context(), tenantID, id, GetActorID(r.Context()))
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), tenantID, id, GetActorID(r.Context()))
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		appt, err := svc.Cancel(r.Context(), tenantID, id, req.Reason, GetActorID(r.Context()))
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentHistoryHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		entries, err := svc.History(r.Context(), tenantID, id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := make([]HistoryEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toHistoryResponse(e))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listProfessionalAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r)
		if !ok {
			return
		}
		professionalID, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.ListForProfessional(r.Context(), tenantID, professionalID, date)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func buildCreateParams(w http.ResponseWriter, req CreateAppointmentRequest) (appointment.CreateParams, bool) {
	var params appointment.CreateParams

	professionalID, err := uuid.Parse(req.ProfessionalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
		return params, false
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
		return params, false
	}
	petID, err := uuid.Parse(req.PetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pet_id", "pet_id must be a valid UUID")
		return params, false
	}

	var specialtyID *uuid.UUID
	if req.SpecialtyID != nil {
		id, err := uuid.Parse(*req.SpecialtyID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialty_id", "specialty_id must be a valid UUID")
			return params, false
		}
		specialtyID = &id
	}

	date, err := time.Parse("2006-01-02", req.AppointmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_date", "appointment_date must be YYYY-MM-DD")
		return params, false
	}

	start, err := schedule.ParseTimeOfDay(req.AppointmentTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_time", "appointment_time must be HH:MM")
		return params, false
	}

	params = appointment.CreateParams{
		ProfessionalID:  professionalID,
		ClientID:        clientID,
		PetID:           petID,
		SpecialtyID:     specialtyID,
		Date:            date,
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	return params, true
}

func buildUpdateParams(w http.ResponseWriter, req UpdateAppointmentRequest) (appointment.UpdateParams, bool) {
	var params appointment.UpdateParams

	if req.ProfessionalID != nil {
		id, err := uuid.Parse(*req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return params, false
		}
		params.ProfessionalID = &id
	}
	if req.SpecialtyID != nil {
		id, err := uuid.Parse(*req.SpecialtyID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialty_id", "specialty_id must be a valid UUID")
			return params, false
		}
		params.SpecialtyID = &id
	}
	if req.AppointmentDate != nil {
		date, err := time.Parse("2006-01-02", *req.AppointmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_date", "appointment_date must be YYYY-MM-DD")
			return params, false
		}
		params.Date = &date
	}
	if req.AppointmentTime != nil {
		start, err := schedule.ParseTimeOfDay(*req.AppointmentTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_time", "appointment_time must be HH:MM")
			return params, false
		}
		params.Start = &start
	}
	params.DurationMinutes = req.DurationMinutes
	params.Notes = req.Notes

	return params, true
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		ProfessionalID:     a.ProfessionalID,
		ClientID:           a.ClientID,
		PetID:              a.PetID,
		SpecialtyID:        a.SpecialtyID,
		AppointmentDate:    a.Date.Format("2006-01-02"),
		AppointmentTime:    a.Start.String(),
		DurationMinutes:    a.DurationMinutes,
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toHistoryResponse(e history.Entry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:            e.ID,
		AppointmentID: e.AppointmentID,
		ActorUserID:   e.ActorUserID,
		PriorStatus:   e.PriorStatus,
		NewStatus:     e.NewStatus,
		Changes:       e.Changes,
		CreatedAt:     e.CreatedAt,
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, schedule.ErrClinicConfigMissing):
		writeError(w, http.StatusNotFound, "clinic_configuration_missing", err.Error())
	case errors.Is(err, schedule.ErrInvalidClinicConfig):
		writeError(w, http.StatusUnprocessableEntity, "invalid_clinic_configuration", err.Error())
	case errors.Is(err, schedule.ErrInvalidBlockRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid_block_range", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, appointment.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "client_not_found", err.Error())
	case errors.Is(err, appointment.ErrPetNotFound):
		writeError(w, http.StatusNotFound, "pet_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrClinicConfigMissing):
		writeError(w, http.StatusNotFound, "clinic_configuration_missing", err.Error())
	case errors.Is(err, schedule.ErrInvalidClinicConfig):
		writeError(w, http.StatusUnprocessableEntity, "invalid_clinic_configuration", err.Error())
	case errors.Is(err, appointment.ErrOutsideClinicHours):
		writeError(w, http.StatusUnprocessableEntity, "outside_clinic_hours", err.Error())
	case errors.Is(err, appointment.ErrInvalidDuration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_duration", err.Error())
	case errors.Is(err, appointment.ErrSlotBlocked):
		writeError(w, http.StatusConflict, "slot_blocked", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
