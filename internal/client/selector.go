package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"realty/internal/models"
)

var ErrSelectionInProgress = errors.New("tier selection already in progress")

// Selector drives one tier choice: Selecting -> AwaitingPayment ->
// Confirmed | Failed. A paid tier is never reported active before the
// server says the checkout is paid.
type Selector struct {
	api        *Client
	propertyID *int64

	mu         sync.Mutex
	state      models.SelectionState
	submitting bool
	level      models.Tier
	checkoutID string
	url        string
}

func NewSelector(api *Client, propertyID *int64) *Selector {
	return &Selector{api: api, propertyID: propertyID, state: models.StateSelecting}
}

func (s *Selector) State() models.SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the tier that is in force, which stays free until a paid
// selection is confirmed.
func (s *Selector) Active() models.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == models.StateConfirmed {
		return s.level
	}
	return models.TierFree
}

// CheckoutURL is the hosted payment page while awaiting payment.
func (s *Selector) CheckoutURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Selector) CheckoutID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkoutID
}

// Choose submits a tier. free confirms without touching checkout; paid tiers
// move to AwaitingPayment.
func (s *Selector) Choose(ctx context.Context, level models.Tier, successURL, cancelURL string) error {
	s.mu.Lock()
	if s.submitting || s.state == models.StateAwaitingPayment {
		s.mu.Unlock()
		return ErrSelectionInProgress
	}
	if s.propertyID == nil && level == models.TierFree {
		s.mu.Unlock()
		return fmt.Errorf("free tier needs a listing")
	}
	s.submitting = true
	s.mu.Unlock()

	var (
		start *CheckoutStart
		err   error
	)
	if s.propertyID != nil {
		start, err = s.api.SelectPropertyTier(ctx, *s.propertyID, level, successURL, cancelURL)
	} else {
		start, err = s.api.CreateCheckoutSession(ctx, models.CheckoutRequest{
			Level: level, SuccessURL: successURL, CancelURL: cancelURL,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if err != nil {
		s.state = models.StateFailed
		return err
	}
	s.level = level
	if level == models.TierFree {
		s.state = models.StateConfirmed
		return nil
	}
	s.state = models.StateAwaitingPayment
	s.checkoutID = start.CheckoutID
	s.url = start.URL
	return nil
}

// Refresh polls the checkout and settles the state once the server has.
func (s *Selector) Refresh(ctx context.Context) (models.SelectionState, error) {
	s.mu.Lock()
	id, st := s.checkoutID, s.state
	s.mu.Unlock()
	if st != models.StateAwaitingPayment {
		return st, nil
	}

	status, err := s.api.Checkout(ctx, id)
	if err != nil {
		return st, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkoutID != id || s.state != models.StateAwaitingPayment {
		return s.state, nil
	}
	switch status.Checkout.Status {
	case models.CheckoutPaid:
		s.state = models.StateConfirmed
	case models.CheckoutFailed, models.CheckoutExpired:
		s.state = models.StateFailed
	}
	return s.state, nil
}

// Reset returns a finished selector to Selecting.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting || s.state == models.StateAwaitingPayment {
		return
	}
	s.state, s.level, s.checkoutID, s.url = models.StateSelecting, "", "", ""
}
