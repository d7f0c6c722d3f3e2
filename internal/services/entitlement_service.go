package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"realty/internal/authz"
	"realty/internal/models"
	"realty/internal/pdf"
	"realty/internal/repositories"
)

type SelectRequest struct {
	Level      models.Tier
	PropertyID *int64
	SuccessURL string
	CancelURL  string
}

// Selection is the outcome of a tier choice. Paid tiers stay in
// awaiting_payment until the processor confirms the checkout.
type Selection struct {
	State      models.SelectionState `json:"state"`
	Level      models.Tier           `json:"level"`
	CheckoutID string                `json:"checkoutId,omitempty"`
	SessionID  string                `json:"sessionId,omitempty"`
	URL        string                `json:"url,omitempty"`
}

type EntitlementService struct {
	users      repositories.UserRepository
	properties repositories.PropertyRepository
	checkouts  repositories.CheckoutRepository
	payments   *PaymentService
	receipts   pdf.Renderer
	notifier   Notifier
	now        func() time.Time
	log        *zap.Logger
}

func NewEntitlementService(
	users repositories.UserRepository,
	properties repositories.PropertyRepository,
	checkouts repositories.CheckoutRepository,
	payments *PaymentService,
	receipts pdf.Renderer,
	notifier Notifier,
	log *zap.Logger,
) *EntitlementService {
	return &EntitlementService{
		users:      users,
		properties: properties,
		checkouts:  checkouts,
		payments:   payments,
		receipts:   receipts,
		notifier:   notifier,
		now:        time.Now,
		log:        log.With(zap.String("component", "entitlement")),
	}
}

func (s *EntitlementService) Plans() []TierPlan { return Plans() }

// Select applies free immediately and routes paid tiers through the payment
// bridge. Nothing is stamped for paid tiers here.
func (s *EntitlementService) Select(ctx context.Context, userID int64, req SelectRequest) (*Selection, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAuthenticationRequired
	}
	if _, ok := PlanFor(req.Level); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, req.Level)
	}

	var prop *models.Property
	if req.PropertyID != nil {
		prop, err = s.properties.GetByID(ctx, *req.PropertyID)
		if err != nil {
			return nil, err
		}
		if prop == nil {
			return nil, ErrNotFound
		}
		if prop.OwnerID != user.ID && !authz.IsAdmin(user.Role) {
			return nil, ErrForbidden
		}
	} else if !authz.CanPostListings(user.Role) {
		return nil, ErrForbidden
	}

	if req.Level == models.TierFree {
		return s.applyFree(ctx, user, prop)
	}

	// Покупка младшего тарифа поверх действующего старшего затёрла бы его.
	current := models.EffectiveTier(user.SubscriptionLevel, user.SubscriptionExpiresAt, s.now())
	if prop != nil {
		current = models.EffectiveTier(prop.SubscriptionLevel, prop.SubscriptionExpiresAt, s.now())
	}
	if tierRank(req.Level) < tierRank(current) {
		return nil, fmt.Errorf("%w: %s is active until it expires", ErrConflict, current)
	}

	res, err := s.payments.CreateCheckout(ctx, user, req.PropertyID, req.Level, req.SuccessURL, req.CancelURL)
	if err != nil {
		return nil, err
	}
	return &Selection{
		State:      models.StateAwaitingPayment,
		Level:      req.Level,
		CheckoutID: res.Checkout.ID,
		SessionID:  res.Checkout.ProviderSessionID,
		URL:        res.URL,
	}, nil
}

func (s *EntitlementService) applyFree(ctx context.Context, user *models.User, prop *models.Property) (*Selection, error) {
	now := s.now()
	if prop != nil {
		// Оплаченный период не сбрасываем.
		if models.EffectiveTier(prop.SubscriptionLevel, prop.SubscriptionExpiresAt, now) != models.TierFree {
			return nil, fmt.Errorf("%w: listing has an active paid tier", ErrConflict)
		}
		if err := s.properties.SetSubscription(ctx, prop.ID, models.TierFree, nil); err != nil {
			return nil, err
		}
		s.log.Info("free tier applied", zap.Int64("property_id", prop.ID))
	} else {
		if models.EffectiveTier(user.SubscriptionLevel, user.SubscriptionExpiresAt, now) != models.TierFree {
			return nil, fmt.Errorf("%w: account has an active paid tier", ErrConflict)
		}
		if err := s.users.SetSubscription(ctx, user.ID, models.TierFree, nil); err != nil {
			return nil, err
		}
		s.log.Info("free tier applied", zap.Int64("user_id", user.ID))
	}
	return &Selection{State: models.StateConfirmed, Level: models.TierFree}, nil
}

// Confirm marks a pending checkout paid and stamps the entitlement. Duplicate
// confirmations return the stored session unchanged.
func (s *EntitlementService) Confirm(ctx context.Context, providerSessionID string) (*models.CheckoutSession, error) {
	rec, err := s.lookup(ctx, providerSessionID, "")
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, rec)
}

func (s *EntitlementService) confirm(ctx context.Context, rec *models.CheckoutSession) (*models.CheckoutSession, error) {
	plan, ok := PlanFor(rec.Level)
	if !ok || plan.Duration <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, rec.Level)
	}

	won, err := s.checkouts.Complete(ctx, rec.ID, s.now(), plan.Duration)
	if err != nil {
		return nil, err
	}
	if !won {
		s.log.Info("checkout already closed", zap.String("checkout_id", rec.ID), zap.String("status", string(rec.Status)))
		return s.reload(ctx, rec)
	}

	s.log.Info("entitlement granted",
		zap.String("checkout_id", rec.ID),
		zap.Int64("user_id", rec.UserID),
		zap.String("level", string(rec.Level)),
	)
	s.announce(ctx, rec, plan)
	return s.reload(ctx, rec)
}

// Fail closes a pending checkout without granting anything.
func (s *EntitlementService) Fail(ctx context.Context, providerSessionID string, status models.CheckoutStatus) (*models.CheckoutSession, error) {
	rec, err := s.lookup(ctx, providerSessionID, "")
	if err != nil {
		return nil, err
	}
	return s.fail(ctx, rec, status)
}

func (s *EntitlementService) fail(ctx context.Context, rec *models.CheckoutSession, status models.CheckoutStatus) (*models.CheckoutSession, error) {
	if status != models.CheckoutFailed && status != models.CheckoutExpired {
		return nil, fmt.Errorf("%w: status %q", ErrValidation, status)
	}
	closed, err := s.checkouts.Close(ctx, rec.ID, status, s.now())
	if err != nil {
		return nil, err
	}
	if closed {
		s.log.Info("checkout closed", zap.String("checkout_id", rec.ID), zap.String("status", string(status)))
	}
	return s.reload(ctx, rec)
}

// HandlePaymentEvent routes a verified processor event. The checkout is found
// by provider session id, or by our own id echoed back as the client
// reference. Unknown sessions are acknowledged so the processor stops
// redelivering them.
func (s *EntitlementService) HandlePaymentEvent(ctx context.Context, ev *PaymentEvent) error {
	if ev == nil || ev.Kind == PaymentIgnored || (ev.ProviderSessionID == "" && ev.ReferenceID == "") {
		return nil
	}
	rec, err := s.lookup(ctx, ev.ProviderSessionID, ev.ReferenceID)
	if errors.Is(err, ErrNotFound) {
		s.log.Warn("payment event for unknown checkout",
			zap.String("event_id", ev.ID),
			zap.String("provider_session_id", ev.ProviderSessionID),
			zap.String("reference_id", ev.ReferenceID))
		return nil
	}
	if err != nil {
		return err
	}
	switch ev.Kind {
	case PaymentCompleted:
		_, err = s.confirm(ctx, rec)
	case PaymentFailed:
		_, err = s.fail(ctx, rec, models.CheckoutFailed)
	case PaymentExpired:
		_, err = s.fail(ctx, rec, models.CheckoutExpired)
	}
	return err
}

// lookup resolves a checkout by provider session id and falls back to the
// checkout id. A fallback hit with no provider id recorded yet gets it
// backfilled; one bound to a different provider session is not ours.
func (s *EntitlementService) lookup(ctx context.Context, providerSessionID, referenceID string) (*models.CheckoutSession, error) {
	if providerSessionID != "" {
		rec, err := s.checkouts.GetByProviderSessionID(ctx, providerSessionID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	if _, err := uuid.Parse(referenceID); err != nil {
		return nil, ErrNotFound
	}
	rec, err := s.checkouts.GetByID(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if providerSessionID == "" {
		return rec, nil
	}
	switch rec.ProviderSessionID {
	case providerSessionID:
	case "":
		if err := s.checkouts.SetProviderSessionID(ctx, rec.ID, providerSessionID); err != nil {
			return nil, err
		}
		rec.ProviderSessionID = providerSessionID
		s.log.Info("provider session backfilled",
			zap.String("checkout_id", rec.ID), zap.String("provider_session_id", providerSessionID))
	default:
		return nil, ErrNotFound
	}
	return rec, nil
}

// Checkout returns a checkout visible to the caller (its owner or an admin).
func (s *EntitlementService) Checkout(ctx context.Context, callerID int64, callerRole models.Role, id string) (*models.CheckoutSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	rec, err := s.checkouts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.UserID != callerID && !authz.IsAdmin(callerRole) {
		return nil, ErrForbidden
	}
	return rec, nil
}

// Receipt renders a PDF for a paid checkout.
func (s *EntitlementService) Receipt(ctx context.Context, callerID int64, callerRole models.Role, id string) ([]byte, error) {
	rec, err := s.Checkout(ctx, callerID, callerRole, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.CheckoutPaid {
		return nil, fmt.Errorf("%w: checkout is %s", ErrConflict, rec.Status)
	}
	owner, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrNotFound
	}
	plan, _ := PlanFor(rec.Level)

	paidAt := rec.CreatedAt
	if rec.CompletedAt != nil {
		paidAt = *rec.CompletedAt
	}
	return s.receipts.RenderReceipt(pdf.ReceiptData{
		CheckoutID:        rec.ID,
		ProviderSessionID: rec.ProviderSessionID,
		Customer:          owner.Username,
		Email:             owner.Email,
		PlanName:          plan.Name,
		Target:            targetLabel(rec),
		Amount:            rec.Amount,
		Currency:          rec.Currency,
		PaidAt:            paidAt,
		ValidDays:         plan.Days,
	})
}

// Property returns a listing with its effective tier resolved at now.
func (s *EntitlementService) Property(ctx context.Context, id int64) (*models.Property, error) {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	s.resolve(p, s.now())
	return p, nil
}

// OwnProperties lists the caller's listings with effective tiers.
func (s *EntitlementService) OwnProperties(ctx context.Context, userID int64) ([]*models.Property, error) {
	list, err := s.properties.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, p := range list {
		s.resolve(p, now)
	}
	if list == nil {
		list = []*models.Property{}
	}
	return list, nil
}

// resolve hides promotion flags once the paid period is over.
func (s *EntitlementService) resolve(p *models.Property, now time.Time) {
	if models.EffectiveTier(p.SubscriptionLevel, p.SubscriptionExpiresAt, now) == models.TierFree {
		p.Featured, p.Premium = false, false
	}
}

func (s *EntitlementService) reload(ctx context.Context, rec *models.CheckoutSession) (*models.CheckoutSession, error) {
	fresh, err := s.checkouts.GetByID(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return rec, nil
	}
	return fresh, nil
}

func (s *EntitlementService) announce(ctx context.Context, rec *models.CheckoutSession, plan TierPlan) {
	if s.notifier == nil {
		return
	}
	text := fmt.Sprintf("Оплачен тариф %s (%d %s) для %s, user #%d",
		plan.Name, rec.Amount, rec.Currency, targetLabel(rec), rec.UserID)
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.Warn("payment notification failed", zap.String("checkout_id", rec.ID), zap.Error(err))
	}
}

func targetLabel(rec *models.CheckoutSession) string {
	if rec.PropertyID != nil {
		return fmt.Sprintf("listing #%d", *rec.PropertyID)
	}
	return "account"
}
