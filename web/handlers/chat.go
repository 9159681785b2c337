package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "estate-agent/errors"
	"estate-agent/web/services"
	"estate-agent/web/types"
)

type ChatHandler struct {
	turns  *services.TurnService
	logger *zap.Logger
}

type ChatRequest struct {
	Message   string   `json:"message"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func NewChatHandler(turns *services.TurnService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		turns:  turns,
		logger: logger,
	}
}

// SendMessage runs one chat turn and streams its checkpoints as SSE.
// Guard rejections happen before the first event, so they go out as
// plain JSON with a real status code; once streaming has started the
// response is committed.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request")
		return
	}

	var location *types.LatLng
	if req.Latitude != nil && req.Longitude != nil {
		location = &types.LatLng{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	ctx := c.Request.Context()
	var writeMu sync.Mutex
	streaming := false

	writeSSEData := func(event services.TurnEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		if !streaming {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			streaming = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		jsonData, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", jsonData); err != nil {
			return err
		}
		if flusher, ok := c.Writer.(http.Flusher); ok {
			flusher.Flush()
		}
		return nil
	}

	err := h.turns.Submit(ctx, req.Message, location, func(event services.TurnEvent) {
		// A dropped client must not abort the turn; the result still
		// has to land in the session log.
		if err := writeSSEData(event); err != nil {
			h.logger.Warn("Failed to write stream event",
				zap.String("event_type", event.Type),
				zap.Error(err))
		}
	})
	if err != nil {
		if streaming {
			h.logger.Error("Turn failed mid-stream", zap.Error(err))
			return
		}
		switch {
		case apperrors.IsInvalidInput(err):
			respondWithClientError(c, http.StatusBadRequest, "Message cannot be empty")
		case apperrors.IsTurnInFlight(err):
			respondWithClientError(c, http.StatusConflict, "A response is already in progress")
		case apperrors.IsNotFound(err):
			respondWithClientError(c, http.StatusNotFound, "No active session")
		default:
			respondWithError(c, http.StatusInternalServerError, err, "Something went wrong", h.logger)
		}
		return
	}

	if err := writeSSEData(services.TurnEvent{Type: services.EventEnd}); err != nil {
		h.logger.Warn("Failed to write stream end", zap.Error(err))
	}
}
