package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"estate-agent/web/services"
)

type SessionHandler struct {
	sessions *services.SessionService
	logger   *zap.Logger
}

func NewSessionHandler(sessions *services.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// List returns session summaries, newest first.
func (h *SessionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Summaries())
}

// Create opens a fresh session and returns its summary.
func (h *SessionHandler) Create(c *gin.Context) {
	summary := h.sessions.Create(c.Request.Context())
	c.JSON(http.StatusCreated, summary)
}

// Delete removes a session; the service handles fallback selection.
func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", id))
		return
	}
	c.Status(http.StatusNoContent)
}

// Select makes a session active.
func (h *SessionHandler) Select(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Select(id); err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", id))
		return
	}
	c.Status(http.StatusNoContent)
}

// Messages returns a session's log with display HTML attached.
func (h *SessionHandler) Messages(c *gin.Context) {
	id := c.Param("id")
	messages, err := h.sessions.Messages(id)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", id))
		return
	}
	c.JSON(http.StatusOK, messages)
}
