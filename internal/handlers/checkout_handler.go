package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realty/internal/models"
	"realty/internal/services"
)

// Entitlements is implemented by services.EntitlementService.
type Entitlements interface {
	Plans() []services.TierPlan
	Select(ctx context.Context, userID int64, req services.SelectRequest) (*services.Selection, error)
	Checkout(ctx context.Context, callerID int64, callerRole models.Role, id string) (*models.CheckoutSession, error)
	Receipt(ctx context.Context, callerID int64, callerRole models.Role, id string) ([]byte, error)
	Property(ctx context.Context, id int64) (*models.Property, error)
	OwnProperties(ctx context.Context, userID int64) ([]*models.Property, error)
	HandlePaymentEvent(ctx context.Context, ev *services.PaymentEvent) error
}

// WebhookParser is implemented by services.PaymentService.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*services.PaymentEvent, error)
}

type CheckoutHandler struct {
	entitlements Entitlements
	webhooks     WebhookParser
	log          *zap.Logger
}

func NewCheckoutHandler(entitlements Entitlements, webhooks WebhookParser, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{entitlements: entitlements, webhooks: webhooks, log: log}
}

// webhook payloads are small; cap what we read
const maxWebhookBody = 64 << 10

// @Summary      Тарифы
// @Tags         Subscriptions
// @Produce      json
// @Success      200  {array}  services.TierPlan
// @Router       /api/subscription-tiers [get]
func (h *CheckoutHandler) Tiers(c *gin.Context) {
	c.JSON(http.StatusOK, h.entitlements.Plans())
}

// @Summary      Создать checkout-сессию
// @Description  Starts payment for a paid or premium tier; nothing is granted until the processor confirms
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        body  body      models.CheckoutRequest  true  "Tier and callback URLs"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/create-checkout-session [post]
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Level != models.TierPaid && req.Level != models.TierPremium {
		writeError(c, h.log, fmt.Errorf("%w: %q", services.ErrInvalidTier, req.Level))
		return
	}
	user := currentUser(c)
	sel, err := h.entitlements.Select(c.Request.Context(), user.ID, services.SelectRequest{
		Level:      req.Level,
		PropertyID: req.PropertyID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":  sel.SessionID,
		"url":        sel.URL,
		"checkoutId": sel.CheckoutID,
		"state":      sel.State,
	})
}

type selectTierRequest struct {
	Level      models.Tier `json:"level" binding:"required"`
	SuccessURL string      `json:"successUrl"`
	CancelURL  string      `json:"cancelUrl"`
}

// @Summary      Выбрать тариф объявления
// @Description  free is applied at once; paid tiers return a checkout to complete
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        id    path      int                true  "Property ID"
// @Param        body  body      selectTierRequest  true  "Tier"
// @Success      200   {object}  services.Selection
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/properties/{id}/subscription [post]
func (h *CheckoutHandler) SelectPropertyTier(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property id"})
		return
	}
	var req selectTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user := currentUser(c)
	sel, err := h.entitlements.Select(c.Request.Context(), user.ID, services.SelectRequest{
		Level:      req.Level,
		PropertyID: &id,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

// @Summary      Объявление
// @Tags         Properties
// @Produce      json
// @Param        id   path      int  true  "Property ID"
// @Success      200  {object}  models.Property
// @Failure      404  {object}  map[string]string
// @Router       /api/properties/{id} [get]
func (h *CheckoutHandler) GetProperty(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property id"})
		return
	}
	p, err := h.entitlements.Property(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Мои объявления
// @Description  Caller's listings with their effective tier flags
// @Tags         Properties
// @Produce      json
// @Success      200  {array}   models.Property
// @Failure      403  {object}  map[string]string
// @Router       /api/my-properties [get]
func (h *CheckoutHandler) MyProperties(c *gin.Context) {
	user := currentUser(c)
	list, err := h.entitlements.OwnProperties(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Статус оплаты
// @Tags         Subscriptions
// @Produce      json
// @Param        id   path      string  true  "Checkout ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/checkout-sessions/{id} [get]
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	user := currentUser(c)
	rec, err := h.entitlements.Checkout(c.Request.Context(), user.ID, user.Role, c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkout": rec,
		"state":    models.SelectionStateFor(rec.Status),
	})
}

// @Summary      Квитанция (PDF)
// @Tags         Subscriptions
// @Produce      application/pdf
// @Param        id   path  string  true  "Checkout ID"
// @Success      200  {file}  file
// @Failure      409  {object}  map[string]string
// @Router       /api/checkout-sessions/{id}/receipt [get]
func (h *CheckoutHandler) Receipt(c *gin.Context) {
	user := currentUser(c)
	id := c.Param("id")
	out, err := h.entitlements.Receipt(c.Request.Context(), user.ID, user.Role, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", out)
}

// @Summary      Stripe webhook
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Failure      400  {object}  map[string]string
// @Router       /api/webhooks/stripe [post]
func (h *CheckoutHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "read body"})
		return
	}
	ev, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrWebhookSignature) {
			h.log.Warn("webhook signature rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		writeError(c, h.log, err)
		return
	}
	if err := h.entitlements.HandlePaymentEvent(c.Request.Context(), ev); err != nil {
		// на 5xx процессор повторит доставку
		writeError(c, h.log, err)
		return
	}
	h.log.Info("webhook processed", zap.String("event_id", ev.ID), zap.String("type", ev.Type), zap.String("kind", string(ev.Kind)))
	c.JSON(http.StatusOK, gin.H{"received": true})
}
