package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/logger"
)

// Client-facing error messages. Causes are logged, never returned.
const (
	ErrMsgDatabaseError  = "Database error"
	ErrMsgInvalidRequest = "Invalid request"
	ErrMsgInternalError  = "Internal server error"
	ErrMsgUnauthorized   = "Invalid authentication token"
	ErrMsgNoToken        = "No authentication token provided"
)

// abortJSON ends the request with {"error": msg}.
func abortJSON(c *gin.Context, status int, msg string, cause error) {
	if cause != nil {
		logger.Debugf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, msg, cause)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func respondDatabaseError(c *gin.Context, err error) {
	abortJSON(c, http.StatusInternalServerError, ErrMsgDatabaseError, err)
}

// respondBadRequest hides err from the client.
func respondBadRequest(c *gin.Context, err error) {
	abortJSON(c, http.StatusBadRequest, ErrMsgInvalidRequest, err)
}

// respondValidation returns err's text; only for errors written for clients.
func respondValidation(c *gin.Context, err error) {
	abortJSON(c, http.StatusBadRequest, err.Error(), nil)
}

func respondServiceUnavailable(c *gin.Context, service string) {
	abortJSON(c, http.StatusServiceUnavailable, service+" not available", nil)
}
