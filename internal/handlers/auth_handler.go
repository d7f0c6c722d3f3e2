package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realty/internal/middleware"
	"realty/internal/models"
	"realty/internal/services"
)

type CookieOptions struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	users    services.UserService
	sessions services.SessionService
	resets   services.PasswordResetService
	cookie   CookieOptions
	log      *zap.Logger
}

func NewAuthHandler(users services.UserService, sessions services.SessionService, resets services.PasswordResetService, cookie CookieOptions, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, resets: resets, cookie: cookie, log: log}
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) bool {
	token, _, err := h.sessions.Create(c.Request.Context(), user)
	if err != nil {
		writeError(c, h.log, err)
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(h.sessions.TTL().Seconds()), "/", "", h.cookie.Secure, true)
	return true
}

// @Summary      Вход в систему
// @Description  Checks credentials and starts a cookie session
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  models.User
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	h.log.Info("login", zap.Int64("user_id", user.ID))
	c.JSON(http.StatusOK, user)
}

// @Summary      Регистрация
// @Description  Creates an account, sends an email code and starts a session
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        user  body      models.RegisterRequest  true  "Sign-up data"
// @Success      201   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary      Выход
// @Tags         Auth
// @Success      200  {object}  map[string]bool
// @Router       /api/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := middleware.SessionToken(c); token != "" {
		if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
			h.log.Warn("session destroy failed", zap.Error(err))
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary      Текущий пользователь
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  map[string]string
// @Router       /api/user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// @Summary      Запрос сброса пароля
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      object{email=string}  true  "Account email"
// @Success      200   {object}  map[string]string
// @Router       /api/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.resets.RequestReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists, a reset email has been sent"})
}

// @Summary      Сброс пароля
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      object{token=string,password=string}  true  "Token and new password"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Router       /api/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.resets.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
