package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realty/internal/middleware"
	"realty/internal/models"
	"realty/internal/repositories"
	"realty/internal/services"
)

type stubUsers struct {
	byID   map[int64]*models.User
	pass   map[string]string
	regErr error
}

func (s *stubUsers) Register(_ context.Context, req models.RegisterRequest) (*models.User, error) {
	if s.regErr != nil {
		return nil, s.regErr
	}
	u := &models.User{ID: int64(len(s.byID) + 1), Username: req.Username, Email: req.Email, Role: models.RoleBuyer, NeedsVerification: true}
	s.byID[u.ID] = u
	return u, nil
}

func (s *stubUsers) Authenticate(_ context.Context, login, password string) (*models.User, error) {
	for _, u := range s.byID {
		if u.Username == login && s.pass[login] == password {
			return u, nil
		}
	}
	return nil, services.ErrInvalidCredentials
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, services.ErrNotFound
}

func (s *stubUsers) List(context.Context, int, int) ([]*models.User, error) {
	var out []*models.User
	for _, u := range s.byID {
		out = append(out, u)
	}
	return out, nil
}

type stubResets struct{ requested []string }

func (s *stubResets) RequestReset(_ context.Context, email string) error {
	s.requested = append(s.requested, email)
	return nil
}

func (s *stubResets) ResetPassword(_ context.Context, token, _ string) error {
	if token != "good" {
		return services.ErrInvalidOrExpiredCode
	}
	return nil
}

type stubVerifier struct {
	verifyErr error
	already   bool
	resendErr error
}

func (s *stubVerifier) Verify(_ context.Context, _ int64, ch models.Channel, code string) (*services.VerifyResult, error) {
	if len(code) != 6 {
		return nil, fmt.Errorf("%w: code must be 6 digits", services.ErrValidation)
	}
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &services.VerifyResult{Channel: ch, AlreadyVerified: s.already}, nil
}

func (s *stubVerifier) Resend(_ context.Context, callerID int64, role models.Role, userID int64, _ models.Channel) (*models.OneTimeCode, error) {
	if callerID != userID && role != models.RoleAdmin {
		return nil, services.ErrForbidden
	}
	if s.resendErr != nil {
		return nil, s.resendErr
	}
	return &models.OneTimeCode{UserID: userID, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

type stubEntitlements struct {
	selects  []services.SelectRequest
	selErr   error
	events   []*services.PaymentEvent
	eventErr error
}

func (s *stubEntitlements) Plans() []services.TierPlan { return services.Plans() }

func (s *stubEntitlements) Select(_ context.Context, _ int64, req services.SelectRequest) (*services.Selection, error) {
	s.selects = append(s.selects, req)
	if s.selErr != nil {
		return nil, s.selErr
	}
	if req.Level == models.TierFree {
		return &services.Selection{State: models.StateConfirmed, Level: req.Level}, nil
	}
	return &services.Selection{
		State: models.StateAwaitingPayment, Level: req.Level,
		CheckoutID: "0b5f1a8e-2c1d-4c55-9d1e-3f1c2a9e7b10", SessionID: "cs_test_1", URL: "https://checkout.example/cs_test_1",
	}, nil
}

func (s *stubEntitlements) Checkout(_ context.Context, callerID int64, _ models.Role, id string) (*models.CheckoutSession, error) {
	if id != "0b5f1a8e-2c1d-4c55-9d1e-3f1c2a9e7b10" {
		return nil, services.ErrNotFound
	}
	return &models.CheckoutSession{ID: id, UserID: callerID, Level: models.TierPaid, Status: models.CheckoutPaid}, nil
}

func (s *stubEntitlements) Receipt(context.Context, int64, models.Role, string) ([]byte, error) {
	return []byte("%PDF-1.3 stub"), nil
}

func (s *stubEntitlements) Property(_ context.Context, id int64) (*models.Property, error) {
	if id != 10 {
		return nil, services.ErrNotFound
	}
	return &models.Property{ID: 10, Title: "Flat"}, nil
}

func (s *stubEntitlements) OwnProperties(_ context.Context, userID int64) ([]*models.Property, error) {
	return []*models.Property{{ID: 10, OwnerID: userID, Title: "Flat"}}, nil
}

func (s *stubEntitlements) HandlePaymentEvent(_ context.Context, ev *services.PaymentEvent) error {
	s.events = append(s.events, ev)
	return s.eventErr
}

type stubParser struct{}

func (stubParser) ParseWebhook(payload []byte, sig string) (*services.PaymentEvent, error) {
	if sig != "valid" {
		return nil, services.ErrWebhookSignature
	}
	return &services.PaymentEvent{ID: "evt_1", Kind: services.PaymentCompleted, ProviderSessionID: string(payload)}, nil
}

type testServer struct {
	r        *gin.Engine
	sessions services.SessionService
	users    *stubUsers
	verifier *stubVerifier
	ents     *stubEntitlements
	resets   *stubResets
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sessions := services.NewSessionService(repositories.NewRedisSessionStore(rdb), "secret", time.Hour)

	users := &stubUsers{
		byID: map[int64]*models.User{
			1: {ID: 1, Username: "buyer", Role: models.RoleBuyer, NeedsVerification: true},
			2: {ID: 2, Username: "seller", Role: models.RoleSeller, EmailVerified: true},
			3: {ID: 3, Username: "root", Role: models.RoleAdmin},
		},
		pass: map[string]string{"buyer": "secret1", "seller": "secret1", "root": "secret1"},
	}
	ts := &testServer{
		sessions: sessions, users: users,
		verifier: &stubVerifier{}, ents: &stubEntitlements{}, resets: &stubResets{},
	}
	log := zap.NewNop()
	auth := NewAuthHandler(users, sessions, ts.resets, CookieOptions{Name: "session"}, log)
	verify := NewVerifyHandler(ts.verifier, log)
	checkout := NewCheckoutHandler(ts.ents, stubParser{}, log)
	admin := NewUserHandler(users, log)

	r := gin.New()
	r.Use(middleware.Session(sessions, users, "session", log))
	r.POST("/api/login", auth.Login)
	r.POST("/api/register", auth.Register)
	r.POST("/api/logout", auth.Logout)
	r.POST("/api/forgot-password", auth.ForgotPassword)
	r.POST("/api/reset-password", auth.ResetPassword)
	r.GET("/api/subscription-tiers", checkout.Tiers)
	r.GET("/api/properties/:id", checkout.GetProperty)
	r.POST("/api/webhooks/stripe", checkout.StripeWebhook)
	r.GET("/api/user", middleware.RequireAuth(), auth.CurrentUser)
	r.POST("/api/verify-otp", middleware.RequireAuth(), verify.VerifyOTP)
	r.POST("/api/resend-otp", middleware.RequireAuth(), verify.ResendOTP)
	r.POST("/api/create-checkout-session", middleware.RequireVerified(), checkout.CreateCheckoutSession)
	r.GET("/api/my-properties", middleware.RequireVerified(), checkout.MyProperties)
	r.POST("/api/properties/:id/subscription", middleware.RequireVerified(), checkout.SelectPropertyTier)
	r.GET("/api/checkout-sessions/:id", middleware.RequireVerified(), checkout.GetCheckout)
	r.GET("/api/checkout-sessions/:id/receipt", middleware.RequireVerified(), checkout.Receipt)
	r.GET("/api/admin/users", middleware.RequireAdmin(), admin.ListUsers)
	ts.r = r
	return ts
}

func (ts *testServer) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, _, err := ts.sessions.Create(context.Background(), ts.users.byID[userID])
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
	}
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestLoginSetsCookieAndUserEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/login", "", gin.H{"username": "seller", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "seller", decode(t, w)["username"])
	ck := sessionCookie(w)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)

	w = ts.do(http.MethodGet, "/api/user", ck.Value, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["id"])
	_, leaked := body["passwordHash"]
	assert.False(t, leaked)

	w = ts.do(http.MethodPost, "/api/logout", ck.Value, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/user", ck.Value, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFailures(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/login", "", gin.H{"username": "seller", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/login", "", gin.H{"username": "seller"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/register", "", gin.H{"username": "newbie", "email": "n@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decode(t, w)["needsVerification"])
	require.NotNil(t, sessionCookie(w))

	w = ts.do(http.MethodPost, "/api/register", "", gin.H{"username": "x", "email": "bad", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.users.regErr = fmt.Errorf("%w: username is taken", services.ErrConflict)
	w = ts.do(http.MethodPost, "/api/register", "", gin.H{"username": "newbie", "email": "n@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "username is taken", decode(t, w)["error"])
}

func TestVerifyOTP(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, 1)

	w := ts.do(http.MethodPost, "/api/verify-otp", "", gin.H{"otp": "123456", "type": "email"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/verify-otp", tok, gin.H{"otp": "123456", "type": "email"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = ts.do(http.MethodPost, "/api/verify-otp", tok, gin.H{"otp": "123", "type": "email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	ts.verifier.verifyErr = services.ErrInvalidOrExpiredCode
	w = ts.do(http.MethodPost, "/api/verify-otp", tok, gin.H{"otp": "654321", "type": "sms"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid or expired code", decode(t, w)["message"])

	ts.verifier.verifyErr = services.ErrTooManyAttempts
	w = ts.do(http.MethodPost, "/api/verify-otp", tok, gin.H{"otp": "654321", "type": "sms"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	ts.verifier.verifyErr = nil
	ts.verifier.already = true
	w = ts.do(http.MethodPost, "/api/verify-otp", tok, gin.H{"otp": "123456", "type": "email"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["alreadyVerified"])
}

func TestResendOTP(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, 1)

	w := ts.do(http.MethodPost, "/api/resend-otp", tok, gin.H{"type": "email"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = ts.do(http.MethodPost, "/api/resend-otp", tok, gin.H{"type": "email", "userId": 2})
	assert.Equal(t, http.StatusForbidden, w.Code)

	ts.verifier.resendErr = services.ErrResendThrottled
	w = ts.do(http.MethodPost, "/api/resend-otp", tok, gin.H{"type": "sms", "userId": 1})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCreateCheckoutSession(t *testing.T) {
	ts := newTestServer(t)
	body := gin.H{"level": "premium", "successUrl": "https://a.example/ok", "cancelUrl": "https://a.example/no"}

	// unverified buyer is gated
	w := ts.do(http.MethodPost, "/api/create-checkout-session", ts.token(t, 1), body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/auth?verification=required", decode(t, w)["redirect"])

	tok := ts.token(t, 2)
	w = ts.do(http.MethodPost, "/api/create-checkout-session", tok, body)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "cs_test_1", out["sessionId"])
	assert.Equal(t, "awaiting_payment", out["state"])

	w = ts.do(http.MethodPost, "/api/create-checkout-session", tok, gin.H{"level": "free", "successUrl": "https://a.example/ok", "cancelUrl": "https://a.example/no"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ts.ents.selects, 1)

	ts.ents.selErr = fmt.Errorf("%w: stripe down", services.ErrPaymentProvider)
	w = ts.do(http.MethodPost, "/api/create-checkout-session", tok, body)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "payment failed, try again", decode(t, w)["error"])
}

func TestSelectPropertyTier(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, 2)

	w := ts.do(http.MethodPost, "/api/properties/10/subscription", tok, gin.H{"level": "free"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", decode(t, w)["state"])
	require.Len(t, ts.ents.selects, 1)
	require.NotNil(t, ts.ents.selects[0].PropertyID)
	assert.Equal(t, int64(10), *ts.ents.selects[0].PropertyID)

	w = ts.do(http.MethodPost, "/api/properties/abc/subscription", tok, gin.H{"level": "free"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.ents.selErr = services.ErrForbidden
	w = ts.do(http.MethodPost, "/api/properties/10/subscription", tok, gin.H{"level": "paid"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMyProperties(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/my-properties", ts.token(t, 1), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/my-properties", ts.token(t, 2), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Property
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].OwnerID)
}

func TestCheckoutStatusAndReceipt(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, 2)

	w := ts.do(http.MethodGet, "/api/checkout-sessions/0b5f1a8e-2c1d-4c55-9d1e-3f1c2a9e7b10", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", decode(t, w)["state"])

	w = ts.do(http.MethodGet, "/api/checkout-sessions/missing", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/checkout-sessions/0b5f1a8e-2c1d-4c55-9d1e-3f1c2a9e7b10/receipt", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "receipt-")
}

func TestStripeWebhook(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/webhooks/stripe", "", "cs_test_1", "Stripe-Signature", "forged")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.ents.events)

	w = ts.do(http.MethodPost, "/api/webhooks/stripe", "", "cs_test_1", "Stripe-Signature", "valid")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ts.ents.events, 1)
	assert.Equal(t, "cs_test_1", ts.ents.events[0].ProviderSessionID)

	ts.ents.eventErr = errors.New("db down")
	w = ts.do(http.MethodPost, "/api/webhooks/stripe", "", "cs_test_1", "Stripe-Signature", "valid")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPublicEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/subscription-tiers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plans []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	require.Len(t, plans, 3)
	assert.Equal(t, float64(300), plans[1]["price"])

	w = ts.do(http.MethodGet, "/api/properties/10", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/api/properties/11", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodPost, "/api/forgot-password", "", gin.H{"email": "a@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a@example.com"}, ts.resets.requested)

	w = ts.do(http.MethodPost, "/api/reset-password", "", gin.H{"token": "bad", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(http.MethodPost, "/api/reset-password", "", gin.H{"token": "good", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminUsers(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/admin/users", ts.token(t, 2), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/", decode(t, w)["redirect"])

	w = ts.do(http.MethodGet, "/api/admin/users", ts.token(t, 3), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorStatus(t *testing.T) {
	cases := map[error]int{
		services.ErrAuthenticationRequired:                       http.StatusUnauthorized,
		services.ErrInvalidOrExpiredCode:                         http.StatusBadRequest,
		fmt.Errorf("%w: bad", services.ErrValidation):            http.StatusBadRequest,
		fmt.Errorf("%w: down", services.ErrPaymentProvider):      http.StatusBadGateway,
		services.ErrInvalidTier:                                  http.StatusBadRequest,
		services.ErrNotFound:                                     http.StatusNotFound,
		services.ErrForbidden:                                    http.StatusForbidden,
		services.ErrResendThrottled:                              http.StatusTooManyRequests,
		services.ErrTooManyAttempts:                              http.StatusTooManyRequests,
		fmt.Errorf("%w: paid tier active", services.ErrConflict): http.StatusConflict,
		errors.New("boom"):                                       http.StatusInternalServerError,
	}
	for err, want := range cases {
		got, _ := errorStatus(err)
		assert.Equal(t, want, got, err.Error())
	}
	_, msg := errorStatus(errors.New("pq: connection refused"))
	assert.Equal(t, "internal error", msg)
}
