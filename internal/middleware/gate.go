package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realty/internal/gate"
)

func guard(requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := CurrentUser(c)
		d := gate.Evaluate(gate.Input{User: user, RequireAdmin: requireAdmin})
		if d.Allow {
			c.Next()
			return
		}
		status := http.StatusForbidden
		msg := "verification required"
		switch d.Reason {
		case gate.ReasonAuthRequired:
			status, msg = http.StatusUnauthorized, "authentication required"
		case gate.ReasonAdminRequired:
			msg = "admin access required"
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":    msg,
			"reason":   d.Reason,
			"redirect": d.Redirect,
		})
	}
}

// RequireVerified lets through only users the verification gate admits.
func RequireVerified() gin.HandlerFunc { return guard(false) }

// RequireAdmin additionally requires the admin role.
func RequireAdmin() gin.HandlerFunc { return guard(true) }
