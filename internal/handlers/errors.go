package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realty/internal/services"
)

// errorStatus maps service errors to an HTTP status and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrAuthenticationRequired):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, services.ErrInvalidOrExpiredCode):
		return http.StatusBadRequest, "invalid or expired code"
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, detail(err)
	case errors.Is(err, services.ErrPaymentProvider):
		return http.StatusBadGateway, "payment failed, try again"
	case errors.Is(err, services.ErrInvalidTier):
		return http.StatusBadRequest, "invalid tier"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrResendThrottled):
		return http.StatusTooManyRequests, "too many codes requested, try again later"
	case errors.Is(err, services.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too many attempts, request a new code"
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, detail(err)
	}
	return http.StatusInternalServerError, "internal error"
}

// detail strips the sentinel prefix from a wrapped validation message.
func detail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func writeError(c *gin.Context, log *zap.Logger, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}
