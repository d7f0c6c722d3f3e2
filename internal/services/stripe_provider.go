package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// CheckoutProvider creates hosted checkout sessions at the payment processor.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, in ProviderCheckout) (*ProviderSession, error)
	ParseEvent(payload []byte, signature string) (*PaymentEvent, error)
}

type ProviderCheckout struct {
	ReferenceID   string
	ProductName   string
	Currency      string
	UnitAmount    int64 // minor units
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

type ProviderSession struct {
	ID  string
	URL string
}

type PaymentEventKind string

const (
	PaymentCompleted PaymentEventKind = "completed"
	PaymentFailed    PaymentEventKind = "failed"
	PaymentExpired   PaymentEventKind = "expired"
	PaymentIgnored   PaymentEventKind = "ignored"
)

// PaymentEvent is a provider notification reduced to what the entitlement
// flow needs.
type PaymentEvent struct {
	ID                string
	Type              string
	Kind              PaymentEventKind
	ProviderSessionID string
	ReferenceID       string
}

var ErrWebhookSignature = errors.New("invalid webhook signature")

type stripeProvider struct {
	sessions      *session.Client
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) CheckoutProvider {
	return &stripeProvider{
		sessions: &session.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: secretKey,
		},
		webhookSecret: webhookSecret,
	}
}

func (p *stripeProvider) CreateSession(_ context.Context, in ProviderCheckout) (*ProviderSession, error) {
	if p.sessions.Key == "" {
		return nil, fmt.Errorf("%w: stripe secret key is not configured", ErrPaymentProvider)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.ReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.UnitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	return &ProviderSession{ID: s.ID, URL: s.URL}, nil
}

func (p *stripeProvider) ParseEvent(payload []byte, signature string) (*PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	ev := &PaymentEvent{ID: event.ID, Type: string(event.Type), Kind: PaymentIgnored}
	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
	default:
		return ev, nil
	}
	if event.Data == nil {
		return ev, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", ErrValidation, err)
	}
	ev.ProviderSessionID = cs.ID
	ev.ReferenceID = cs.ClientReferenceID

	switch event.Type {
	case "checkout.session.completed":
		// Отложенные методы оплаты приходят позже отдельным событием.
		if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
			ev.Kind = PaymentCompleted
		}
	case "checkout.session.async_payment_succeeded":
		ev.Kind = PaymentCompleted
	case "checkout.session.async_payment_failed":
		ev.Kind = PaymentFailed
	case "checkout.session.expired":
		ev.Kind = PaymentExpired
	}
	return ev, nil
}
