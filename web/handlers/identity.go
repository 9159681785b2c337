package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "estate-agent/errors"
	"estate-agent/web/services"
	"estate-agent/web/types"
)

type IdentityHandler struct {
	sessions *services.SessionService
	logger   *zap.Logger
}

func NewIdentityHandler(sessions *services.SessionService, logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// Current returns the signed-in record, or the guest identity.
func (h *IdentityHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.CurrentIdentity())
}

// SignIn accepts the credential record the client obtained from the
// sign-in provider and swaps to that user's sessions.
func (h *IdentityHandler) SignIn(c *gin.Context) {
	var rec types.Identity
	if err := c.ShouldBindJSON(&rec); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid identity payload")
		return
	}

	if err := h.sessions.SignIn(c.Request.Context(), rec); err != nil {
		if apperrors.IsInvalidInput(err) {
			respondWithClientError(c, http.StatusBadRequest, "Sign-in requires a user id")
			return
		}
		respondWithError(c, http.StatusInternalServerError, err, "Could not sign in", h.logger)
		return
	}
	c.JSON(http.StatusOK, h.sessions.CurrentIdentity())
}

// SignOut reverts to guest sessions.
func (h *IdentityHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not sign out", h.logger)
		return
	}
	c.Status(http.StatusNoContent)
}
