// Package client is a Go client for the realty API. It keeps the session
// cookie in a jar and mirrors the server's gate and tier-selection rules.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"realty/internal/models"
)

// OTPLength is the number of digits the server issues.
const OTPLength = 6

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrInvalidCode     = errors.New("code must be 6 digits")
)

// APIError is a non-2xx response.
type APIError struct {
	Status   int
	Message  string
	Reason   string
	Redirect string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.Mutex
	on401 []func()
}

func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	return &Client{base: u, http: hc}, nil
}

// OnUnauthorized registers fn to run whenever the server answers 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.on401 = append(c.on401, fn)
	c.mu.Unlock()
}

func (c *Client) unauthorized() {
	c.mu.Lock()
	hooks := append([]func(){}, c.on401...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error    string `json:"error"`
			Message  string `json:"message"`
			Reason   string `json:"reason"`
			Redirect string `json:"redirect"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		msg := payload.Error
		if msg == "" {
			msg = payload.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: msg, Reason: payload.Reason, Redirect: payload.Redirect}
		if resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized()
			return fmt.Errorf("%w: %v", ErrUnauthenticated, apiErr)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPost, "/api/login", models.LoginRequest{Username: username, Password: password}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPost, "/api/register", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

// User returns the session user, or ErrUnauthenticated.
func (c *Client) User(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type OTPResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	AlreadyVerified bool   `json:"alreadyVerified"`
}

// ValidOTP reports whether code can be sent to the server at all.
func ValidOTP(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// VerifyOTP rejects malformed codes locally, without a round trip.
func (c *Client) VerifyOTP(ctx context.Context, code string, channel models.Channel) (*OTPResult, error) {
	if !ValidOTP(code) {
		return nil, ErrInvalidCode
	}
	var res OTPResult
	err := c.do(ctx, http.MethodPost, "/api/verify-otp", map[string]string{"otp": code, "type": string(channel)}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ResendOTP(ctx context.Context, channel models.Channel, userID int64) error {
	return c.do(ctx, http.MethodPost, "/api/resend-otp", map[string]any{"type": channel, "userId": userID}, nil)
}

type Tier struct {
	Level    models.Tier `json:"level"`
	Name     string      `json:"name"`
	Price    int64       `json:"price"`
	Days     int         `json:"durationDays"`
	Features []string    `json:"features"`
}

func (c *Client) Tiers(ctx context.Context) ([]Tier, error) {
	var out []Tier
	if err := c.do(ctx, http.MethodGet, "/api/subscription-tiers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type CheckoutStart struct {
	SessionID  string                `json:"sessionId"`
	URL        string                `json:"url"`
	CheckoutID string                `json:"checkoutId"`
	State      models.SelectionState `json:"state"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*CheckoutStart, error) {
	var out CheckoutStart
	if err := c.do(ctx, http.MethodPost, "/api/create-checkout-session", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SelectPropertyTier posts a tier choice for one listing.
func (c *Client) SelectPropertyTier(ctx context.Context, propertyID int64, level models.Tier, successURL, cancelURL string) (*CheckoutStart, error) {
	var out CheckoutStart
	body := map[string]string{"level": string(level), "successUrl": successURL, "cancelUrl": cancelURL}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/properties/%d/subscription", propertyID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CheckoutStatus struct {
	Checkout models.CheckoutSession `json:"checkout"`
	State    models.SelectionState  `json:"state"`
}

func (c *Client) Checkout(ctx context.Context, id string) (*CheckoutStatus, error) {
	var out CheckoutStatus
	if err := c.do(ctx, http.MethodGet, "/api/checkout-sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
