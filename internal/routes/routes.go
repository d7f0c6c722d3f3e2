package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realty/internal/handlers"
	"realty/internal/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Verify   *handlers.VerifyHandler
	Checkout *handlers.CheckoutHandler
	Users    *handlers.UserHandler
}

// SetupRoutes expects the session middleware to be installed on r already.
func SetupRoutes(r *gin.Engine, h Handlers) *gin.Engine {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")

	// ---- public
	api.POST("/login", h.Auth.Login)
	api.POST("/register", h.Auth.Register)
	api.POST("/logout", h.Auth.Logout)
	api.POST("/forgot-password", h.Auth.ForgotPassword)
	api.POST("/reset-password", h.Auth.ResetPassword)
	api.GET("/subscription-tiers", h.Checkout.Tiers)
	api.GET("/properties/:id", h.Checkout.GetProperty)
	api.POST("/webhooks/stripe", h.Checkout.StripeWebhook)

	// ---- session, verification not required yet
	authed := api.Group("", middleware.RequireAuth())
	{
		authed.GET("/user", h.Auth.CurrentUser)
		authed.POST("/verify-otp", h.Verify.VerifyOTP)
		authed.POST("/resend-otp", h.Verify.ResendOTP)
	}

	// ---- verified
	verified := api.Group("", middleware.RequireVerified())
	{
		verified.POST("/create-checkout-session", h.Checkout.CreateCheckoutSession)
		verified.GET("/my-properties", h.Checkout.MyProperties)
		verified.POST("/properties/:id/subscription", h.Checkout.SelectPropertyTier)
		verified.GET("/checkout-sessions/:id", h.Checkout.GetCheckout)
		verified.GET("/checkout-sessions/:id/receipt", h.Checkout.Receipt)
	}

	// ---- admin
	admin := api.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/users", h.Users.ListUsers)
	}

	return r
}
