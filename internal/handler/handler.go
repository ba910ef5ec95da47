// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rakapradipta/blood-donor-registration/internal/model"
	"github.com/rakapradipta/blood-donor-registration/internal/repository"
	"github.com/rakapradipta/blood-donor-registration/internal/service"
)

// RegistrationHandler holds all HTTP handlers for the donor
// registration API.
type RegistrationHandler struct {
	svc *service.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps service/repository errors to HTTP statuses and
// the user-facing copy for each failure class.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, repository.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event unavailable, please re-select")
	case errors.Is(err, repository.ErrQuotaExceeded):
		writeError(w, http.StatusConflict, "this slot is full")
	case errors.Is(err, repository.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporary problem, please try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Public handlers ──────────────────────────────────────────────────────────

// ListEvents handles GET /events
// Returns all donation slots with their live quota state, date ascending.
func (h *RegistrationHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *RegistrationHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Register handles POST /events/{id}/register
// Performs the concurrency-safe quota-bounded registration.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.Register(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ─── Admin handlers ───────────────────────────────────────────────────────────

// CreateEvent handles POST /admin/events
func (h *RegistrationHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// SetCapacity handles PUT /admin/events/{id}/capacity
func (h *RegistrationHandler) SetCapacity(w http.ResponseWriter, r *http.Request) {
	var req model.SetCapacityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.SetCapacity(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ResetAll handles POST /admin/reset
// Zeroes all counters and deletes every registrant.
func (h *RegistrationHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetAll(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Seed handles POST /admin/seed
// Inserts the default donation slots if they are missing.
func (h *RegistrationHandler) Seed(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.SeedDefaults(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": n})
}

// ListRegistrants handles GET /admin/registrants
func (h *RegistrationHandler) ListRegistrants(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListRegistrants(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []model.ExportRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// ExportRegistrants handles GET /admin/registrants/export
// Streams all registrants as a CSV download for the admin dashboard.
func (h *RegistrationHandler) ExportRegistrants(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListRegistrants(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("registrants-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "full_name", "national_id", "contact_number", "location", "date", "registered_at"})
	for _, row := range rows {
		_ = cw.Write([]string{
			row.ID,
			row.FullName,
			row.NationalID,
			row.ContactNumber,
			row.Location,
			row.Date,
			row.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
