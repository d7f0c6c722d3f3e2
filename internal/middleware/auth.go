package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realty/internal/models"
	"realty/internal/services"
)

const (
	ctxUser    = "user"
	ctxSession = "session"
	ctxToken   = "session_token"
)

// UserLoader reloads the user behind a session on every request so that
// verification flags are never stale.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Session resolves the session cookie (or a Bearer token) and puts the user
// into the context. Requests without a valid session pass through anonymous.
func Session(sessions services.SessionService, users UserLoader, cookieName string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		token, _ := c.Cookie(cookieName)
		if token == "" {
			token = bearerToken(c)
		}
		if token == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		sess, err := sessions.Resolve(ctx, token)
		if err != nil {
			if !errors.Is(err, services.ErrAuthenticationRequired) {
				log.Error("session resolve failed", zap.Error(err))
			}
			c.Next()
			return
		}
		user, err := users.GetByID(ctx, sess.UserID)
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			log.Error("session user load failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if user == nil {
			c.Next()
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxSession, sess)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func SessionToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
