package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonslots/libs/config"
	"github.com/md-rashed-zaman/salonslots/libs/httpx"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
)

const maxBodyBytes = 1 << 20

type SlotFinder interface {
	FreeSlots(ctx context.Context, date, staffID string, spec catalog.Spec) ([]availability.Slot, error)
}

type Booker interface {
	Commit(ctx context.Context, req booking.Request) (booking.Result, error)
}

type AppointmentUpdater interface {
	TransitionStatus(ctx context.Context, appointmentID string, to model.Status) (model.Appointment, error)
	SoftDelete(ctx context.Context, appointmentID string) error
}

type BookingHandler struct {
	slots        SlotFinder
	booker       Booker
	appointments AppointmentUpdater
	logger       *slog.Logger
}

func NewBookingHandler(slots SlotFinder, booker Booker, appointments AppointmentUpdater, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		slots:        slots,
		booker:       booker,
		appointments: appointments,
		logger:       logger,
	}
}

type slotItem struct {
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
}

type bookRequest struct {
	StaffID         string   `json:"staff_id"`
	ServiceIDs      []string `json:"service_ids"`
	DurationMinutes int      `json:"duration_minutes"`
	StartAt         string   `json:"start_at"`
	Client          struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"client"`
}

type bookResponse struct {
	AppointmentID string `json:"appointment_id"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	Status        string `json:"status"`
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type statusResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	UpdatedAt     string `json:"updated_at"`
}

type deleteRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Slots serves GET ?staff_id=&date=YYYY-MM-DD&service_ids=a,b or &duration_minutes=N.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	q := r.URL.Query()
	staffID := strings.TrimSpace(q.Get("staff_id"))
	date := strings.TrimSpace(q.Get("date"))
	if staffID == "" || date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "staff_id and date are required")
		return
	}

	spec := catalog.Spec{ServiceIDs: config.SplitList(q.Get("service_ids"))}
	if !spec.UsesServices() {
		raw := strings.TrimSpace(q.Get("duration_minutes"))
		if raw == "" {
			httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "service_ids or duration_minutes is required")
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "duration_minutes must be an integer")
			return
		}
		spec.Minutes = n
	}

	slots, err := h.slots.FreeSlots(r.Context(), date, staffID, spec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotItem{
			StartAt:      s.StartAt.UTC().Format(time.RFC3339),
			EndAt:        s.EndAt.UTC().Format(time.RFC3339),
			StartMinutes: s.StartMinutes,
			EndMinutes:   s.EndMinutes,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start_at must be RFC3339")
		return
	}

	res, err := h.booker.Commit(r.Context(), booking.Request{
		StaffID:  strings.TrimSpace(req.StaffID),
		Duration: catalog.Spec{Minutes: req.DurationMinutes, ServiceIDs: req.ServiceIDs},
		StartAt:  startAt,
		Client: booking.ClientInfo{
			Name:  req.Client.Name,
			Phone: req.Client.Phone,
			Email: req.Client.Email,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, bookResponse{
		AppointmentID: res.AppointmentID,
		StartAt:       res.StartAt.UTC().Format(time.RFC3339),
		EndAt:         res.EndAt.UTC().Format(time.RFC3339),
		Status:        string(res.Status),
	})
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if !validAppointmentID(w, req.AppointmentID) {
		return
	}
	to, err := model.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	appt, err := h.appointments.TransitionStatus(r.Context(), req.AppointmentID, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{
		AppointmentID: appt.ID,
		Status:        string(appt.Status),
		UpdatedAt:     appt.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if !validAppointmentID(w, req.AppointmentID) {
		return
	}
	if err := h.appointments.SoftDelete(r.Context(), req.AppointmentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validAppointmentID(w http.ResponseWriter, id string) bool {
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "appointment_id is required")
		return false
	}
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "appointment_id must be a uuid")
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return false
	}
	return true
}

// writeError never leaks internal detail; conflicts carry a fixed code so clients can
// re-request availability.
func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, model.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, model.ErrSlotTaken):
		httpx.WriteError(w, http.StatusConflict, "SLOT_TAKEN", "the selected time is no longer available")
	case errors.Is(err, model.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
