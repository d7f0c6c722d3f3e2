package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "realty/docs"
	"realty/internal/config"
	"realty/internal/db"
	"realty/internal/handlers"
	"realty/internal/logger"
	"realty/internal/middleware"
	"realty/internal/models"
	"realty/internal/pdf"
	"realty/internal/repositories"
	"realty/internal/routes"
	"realty/internal/services"
	"realty/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Development, logger.LogLevel(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DB ===
	conn, err := db.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("db close", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}

	// === Redis ===
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(conn)
	otpRepo := repositories.NewOTPRepository(conn)
	propertyRepo := repositories.NewPropertyRepository(conn)
	checkoutRepo := repositories.NewCheckoutRepository(conn)
	resetRepo := repositories.NewPasswordResetRepository(conn)
	sessionStore := repositories.NewRedisSessionStore(rdb)

	// === Services ===
	authService := services.NewAuthService()
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
		cfg.Email.DryRun,
		log,
	)
	mobizon := utils.NewMobizonClient(cfg.Mobizon.APIKey, cfg.Mobizon.SenderID, cfg.Mobizon.DryRun, log)
	whatsapp := utils.NewWhatsAppClient(cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.DryRun, log)

	otpService := services.NewOTPService(otpRepo, userRepo, map[models.Channel]services.CodeSender{
		models.ChannelEmail:    services.NewEmailCodeSender(emailService),
		models.ChannelSMS:      services.NewSMSCodeSender(mobizon),
		models.ChannelWhatsApp: services.NewWhatsAppCodeSender(whatsapp),
	}, services.OTPOptions{
		TTL:               cfg.OTP.TTL,
		MaxAttempts:       cfg.OTP.MaxAttempts,
		MaxSendsPerWindow: cfg.OTP.MaxSendsPerWindow,
		SendWindow:        cfg.OTP.SendWindow,
	}, log)

	userService := services.NewUserService(userRepo, authService, otpService, log)
	sessionService := services.NewSessionService(sessionStore, cfg.Session.JWTSecret, cfg.Session.TTL)
	resetService := services.NewPasswordResetService(userRepo, resetRepo, emailService, authService, log)

	if cfg.Stripe.SecretKey == "" {
		log.Warn("stripe secret key is empty, paid tiers will fail")
	}
	paymentService := services.NewPaymentService(
		services.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret),
		checkoutRepo,
		cfg.Stripe.Currency,
		log,
	)
	notifier := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	entitlementService := services.NewEntitlementService(
		userRepo,
		propertyRepo,
		checkoutRepo,
		paymentService,
		pdf.NewReceiptGenerator(cfg.Receipts.FontPath),
		notifier,
		log,
	)

	// === Handlers ===
	h := routes.Handlers{
		Auth: handlers.NewAuthHandler(userService, sessionService, resetService, handlers.CookieOptions{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.Secure,
		}, log),
		Verify:   handlers.NewVerifyHandler(otpService, log),
		Checkout: handlers.NewCheckoutHandler(entitlementService, paymentService, log),
		Users:    handlers.NewUserHandler(userService, log),
	}

	// === Gin ===
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logger.GinLogger(log))
	router.Use(logger.GinRecovery(log))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.Session(sessionService, userService, cfg.Session.CookieName, log))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, h)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
