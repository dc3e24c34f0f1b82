package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/clinicdesk-ai/booking-assistant/internal/model"
	"github.com/clinicdesk-ai/booking-assistant/internal/store"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
)

// AppointmentHandler serves booked appointment records.
type AppointmentHandler struct {
	store  *store.Mongo
	logger *logger.Logger
}

// NewAppointmentHandler creates a new appointment handler.
func NewAppointmentHandler(st *store.Mongo, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		store:  st,
		logger: log,
	}
}

// List handles GET /api/v1/appointments
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := int64(20)
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.ParseInt(l, 10, 64); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	appointments, err := h.store.RecentAppointments(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list appointments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListAppointmentsResponse{
		Appointments: appointments,
		Total:        len(appointments),
	})
}
