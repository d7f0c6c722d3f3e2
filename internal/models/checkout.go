package models

import "time"

type Tier string

const (
	TierFree    Tier = "free"
	TierPaid    Tier = "paid"
	TierPremium Tier = "premium"
)

type CheckoutStatus string

const (
	CheckoutPending CheckoutStatus = "pending"
	CheckoutPaid    CheckoutStatus = "paid"
	CheckoutFailed  CheckoutStatus = "failed"
	CheckoutExpired CheckoutStatus = "expired"
)

// SelectionState is the tier-selection lifecycle seen by the caller.
type SelectionState string

const (
	StateSelecting       SelectionState = "selecting"
	StateAwaitingPayment SelectionState = "awaiting_payment"
	StateConfirmed       SelectionState = "confirmed"
	StateFailed          SelectionState = "failed"
)

// SelectionStateFor maps a persisted checkout status to the selection state.
func SelectionStateFor(s CheckoutStatus) SelectionState {
	switch s {
	case CheckoutPaid:
		return StateConfirmed
	case CheckoutFailed, CheckoutExpired:
		return StateFailed
	default:
		return StateAwaitingPayment
	}
}

// CheckoutSession correlates a tier selection with the payment provider's session.
type CheckoutSession struct {
	ID                string         `json:"id"`
	UserID            int64          `json:"userId"`
	PropertyID        *int64         `json:"propertyId,omitempty"`
	Level             Tier           `json:"level"`
	Amount            int64          `json:"amount"`
	Currency          string         `json:"currency"`
	ProviderSessionID string         `json:"providerSessionId,omitempty"`
	Status            CheckoutStatus `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

type CheckoutRequest struct {
	Level      Tier   `json:"level" binding:"required"`
	SuccessURL string `json:"successUrl" binding:"required"`
	CancelURL  string `json:"cancelUrl" binding:"required"`
	PropertyID *int64 `json:"propertyId"`
}

// EffectiveTier returns level while the entitlement is live and free once it
// has expired.
func EffectiveTier(level Tier, expiresAt *time.Time, now time.Time) Tier {
	if level == "" || level == TierFree {
		return TierFree
	}
	if expiresAt == nil || !now.Before(*expiresAt) {
		return TierFree
	}
	return level
}
