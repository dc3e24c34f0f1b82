package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/clinicdesk-ai/booking-assistant/internal/engine"
	"github.com/clinicdesk-ai/booking-assistant/internal/middleware"
	"github.com/clinicdesk-ai/booking-assistant/internal/model"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
)

// ChatHandler handles the chat-turn endpoint.
type ChatHandler struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(eng *engine.Engine, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		engine: eng,
		logger: log,
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.engine.HandleTurn(ctx, req.SessionKey, req.Message)
	if err != nil {
		var vErr *engine.ValidationError
		if errors.As(err, &vErr) {
			writeFieldError(w, http.StatusBadRequest, vErr.Field, vErr.Reason)
			return
		}

		var pErr *engine.PersistenceError
		if errors.As(err, &pErr) {
			h.logger.Error("chat turn failed on persistence",
				zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
				zap.Error(err))
			writeError(w, http.StatusBadGateway, "booking could not be saved, please try again")
			return
		}

		h.logger.Error("chat turn failed",
			zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
