package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"realty/internal/models"
	"realty/internal/repositories"
)

// PaymentService is the bridge to the external payment processor. It records
// a CheckoutSession for every attempt and never grants entitlements itself.
type PaymentService struct {
	provider  CheckoutProvider
	checkouts repositories.CheckoutRepository
	currency  string
	now       func() time.Time
	log       *zap.Logger
}

func NewPaymentService(provider CheckoutProvider, checkouts repositories.CheckoutRepository, currency string, log *zap.Logger) *PaymentService {
	return &PaymentService{
		provider:  provider,
		checkouts: checkouts,
		currency:  strings.ToLower(currency),
		now:       time.Now,
		log:       log.With(zap.String("component", "payment")),
	}
}

type CheckoutResult struct {
	Checkout *models.CheckoutSession
	URL      string
}

// CreateCheckout opens a hosted checkout for a paid tier.
func (s *PaymentService) CreateCheckout(ctx context.Context, user *models.User, propertyID *int64, level models.Tier, successURL, cancelURL string) (*CheckoutResult, error) {
	plan, ok := PlanFor(level)
	if !ok || plan.Price <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, level)
	}
	if err := validateCallbackURL(successURL); err != nil {
		return nil, fmt.Errorf("%w: successUrl: %v", ErrValidation, err)
	}
	if err := validateCallbackURL(cancelURL); err != nil {
		return nil, fmt.Errorf("%w: cancelUrl: %v", ErrValidation, err)
	}

	rec := &models.CheckoutSession{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		PropertyID: propertyID,
		Level:      level,
		Amount:     plan.Price,
		Currency:   s.currency,
		Status:     models.CheckoutPending,
	}
	if err := s.checkouts.Create(ctx, rec); err != nil {
		return nil, err
	}

	meta := map[string]string{
		"checkout_id": rec.ID,
		"user_id":     strconv.FormatInt(user.ID, 10),
		"level":       string(level),
	}
	if propertyID != nil {
		meta["property_id"] = strconv.FormatInt(*propertyID, 10)
	}

	ps, err := s.provider.CreateSession(ctx, ProviderCheckout{
		ReferenceID:   rec.ID,
		ProductName:   fmt.Sprintf("%s listing (%d days)", plan.Name, plan.Days),
		Currency:      s.currency,
		UnitAmount:    plan.Price * 100,
		SuccessURL:    withSessionPlaceholder(successURL),
		CancelURL:     cancelURL,
		CustomerEmail: user.Email,
		Metadata:      meta,
	})
	if err != nil {
		s.log.Error("checkout session failed",
			zap.String("checkout_id", rec.ID), zap.String("level", string(level)), zap.Error(err))
		if _, cerr := s.checkouts.Close(ctx, rec.ID, models.CheckoutFailed, s.now()); cerr != nil {
			s.log.Warn("close failed checkout", zap.String("checkout_id", rec.ID), zap.Error(cerr))
		}
		if errors.Is(err, ErrPaymentProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	// Сессия у процессора уже создана: вебхук найдёт запись по client_reference_id.
	if err := s.checkouts.SetProviderSessionID(ctx, rec.ID, ps.ID); err != nil {
		s.log.Warn("record provider session",
			zap.String("checkout_id", rec.ID), zap.String("provider_session_id", ps.ID), zap.Error(err))
	}
	rec.ProviderSessionID = ps.ID

	s.log.Info("checkout created",
		zap.String("checkout_id", rec.ID),
		zap.String("provider_session_id", ps.ID),
		zap.Int64("user_id", user.ID),
		zap.String("level", string(level)),
		zap.Int64("amount", plan.Price),
	)
	return &CheckoutResult{Checkout: rec, URL: ps.URL}, nil
}

// ParseWebhook verifies and decodes a processor notification.
func (s *PaymentService) ParseWebhook(payload []byte, signature string) (*PaymentEvent, error) {
	return s.provider.ParseEvent(payload, signature)
}

func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// withSessionPlaceholder adds the processor's session-id template to the
// success URL so the client can poll the checkout after redirect.
func withSessionPlaceholder(successURL string) string {
	if strings.Contains(successURL, "{CHECKOUT_SESSION_ID}") {
		return successURL
	}
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id={CHECKOUT_SESSION_ID}"
}
