package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realty/internal/models"
	"realty/internal/services"
)

// CodeVerifier is implemented by services.OTPService.
type CodeVerifier interface {
	Verify(ctx context.Context, userID int64, channel models.Channel, code string) (*services.VerifyResult, error)
	Resend(ctx context.Context, callerID int64, callerRole models.Role, userID int64, channel models.Channel) (*models.OneTimeCode, error)
}

type VerifyHandler struct {
	codes CodeVerifier
	log   *zap.Logger
}

func NewVerifyHandler(codes CodeVerifier, log *zap.Logger) *VerifyHandler {
	return &VerifyHandler{codes: codes, log: log}
}

type verifyOTPRequest struct {
	OTP  string         `json:"otp" binding:"required"`
	Type models.Channel `json:"type" binding:"required"`
}

type resendOTPRequest struct {
	Type   models.Channel `json:"type" binding:"required"`
	UserID int64          `json:"userId"`
}

func (h *VerifyHandler) fail(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("otp request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": msg, "error": msg})
}

// @Summary      Подтверждение кода
// @Description  Verifies a one-time code for the current user and channel
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        body  body      verifyOTPRequest  true  "Code and channel"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]interface{}
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]interface{}
// @Router       /api/verify-otp [post]
func (h *VerifyHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error(), "error": err.Error()})
		return
	}
	user := currentUser(c)
	res, err := h.codes.Verify(c.Request.Context(), user.ID, req.Type, req.OTP)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := fmt.Sprintf("%s verified", req.Type)
	if res.AlreadyVerified {
		msg = fmt.Sprintf("%s already verified", req.Type)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "alreadyVerified": res.AlreadyVerified})
}

// @Summary      Повторная отправка кода
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        body  body      resendOTPRequest  true  "Channel and user"
// @Success      200   {object}  map[string]interface{}
// @Failure      403   {object}  map[string]interface{}
// @Failure      429   {object}  map[string]interface{}
// @Router       /api/resend-otp [post]
func (h *VerifyHandler) ResendOTP(c *gin.Context) {
	var req resendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error(), "error": err.Error()})
		return
	}
	user := currentUser(c)
	target := req.UserID
	if target == 0 {
		target = user.ID
	}
	rec, err := h.codes.Resend(c.Request.Context(), user.ID, user.Role, target, req.Type)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("code sent via %s", req.Type),
		"expiresAt": rec.ExpiresAt,
	})
}
