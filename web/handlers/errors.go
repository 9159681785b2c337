package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "estate-agent/errors"
)

// respondWithError logs the technical error and returns a user-friendly message
func respondWithError(c *gin.Context, statusCode int, technicalError error, userMessage string, logger *zap.Logger, fields ...zap.Field) {
	if logger != nil {
		fields = append(fields, zap.Error(technicalError))
		logger.Error("Request failed", fields...)
	}

	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithClientError returns a client error (no logging needed for validation errors)
func respondWithClientError(c *gin.Context, statusCode int, userMessage string) {
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondForError maps sentinel error classes onto HTTP responses so
// handlers stay out of the status-code business.
func respondForError(c *gin.Context, err error, logger *zap.Logger, fields ...zap.Field) {
	switch {
	case apperrors.IsInvalidInput(err):
		respondWithClientError(c, http.StatusBadRequest, "Invalid request")
	case apperrors.IsTurnInFlight(err):
		respondWithClientError(c, http.StatusConflict, "A response is already in progress")
	case apperrors.IsNotFound(err):
		respondWithClientError(c, http.StatusNotFound, "Session not found")
	default:
		respondWithError(c, http.StatusInternalServerError, err, "Something went wrong", logger, fields...)
	}
}
