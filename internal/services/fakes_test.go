package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"realty/internal/models"
	"realty/internal/pdf"
	"realty/internal/repositories"
)

// clock is a settable time source shared by fakes and services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*models.User{}}
	for _, u := range users {
		cp := *u
		f.byID[u.ID] = &cp
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.byID {
		if ex.Username == u.Username || ex.Email == u.Email {
			return repositories.ErrDuplicate
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) find(match func(*models.User) bool) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Username == username }), nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (f *fakeUsers) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []*models.User
	for i, id := range ids {
		if i < offset || len(out) >= limit {
			continue
		}
		cp := *f.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (f *fakeUsers) SetSubscription(_ context.Context, id int64, level models.Tier, exp *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.SubscriptionLevel = level
		u.SubscriptionExpiresAt = exp
	}
	return nil
}

func (f *fakeUsers) markVerified(id int64, channel models.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return
	}
	if channel == models.ChannelEmail {
		u.EmailVerified = true
	} else {
		u.PhoneVerified = true
	}
	u.NeedsVerification = false
}

type fakeOTP struct {
	mu     sync.Mutex
	users  *fakeUsers
	codes  []*models.OneTimeCode
	flips  int
	nextID int64
}

func (f *fakeOTP) Replace(_ context.Context, c *models.OneTimeCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.codes {
		if ex.UserID == c.UserID && ex.Channel == c.Channel && ex.ConsumedAt == nil && ex.SupersededAt == nil {
			at := c.SentAt
			ex.SupersededAt = &at
		}
	}
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.codes = append(f.codes, &cp)
	return nil
}

func (f *fakeOTP) GetCurrent(_ context.Context, userID int64, channel models.Channel) (*models.OneTimeCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.codes) - 1; i >= 0; i-- {
		c := f.codes[i]
		if c.UserID == userID && c.Channel == channel && c.SupersededAt == nil {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOTP) CountRecentSends(_ context.Context, userID int64, channel models.Channel, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.codes {
		if c.UserID == userID && c.Channel == channel && !c.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeOTP) byID(id int64) *models.OneTimeCode {
	for _, c := range f.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeOTP) IncrementAttempts(_ context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID(id)
	if c == nil {
		return 0, errors.New("no code")
	}
	c.Attempts++
	return c.Attempts, nil
}

func (f *fakeOTP) Supersede(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.byID(id); c != nil && c.SupersededAt == nil {
		c.SupersededAt = &at
	}
	return nil
}

func (f *fakeOTP) Consume(_ context.Context, code *models.OneTimeCode, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID(code.ID)
	if c == nil || c.ConsumedAt != nil || c.SupersededAt != nil || !at.Before(c.ExpiresAt) {
		return false, nil
	}
	c.ConsumedAt = &at
	f.flips++
	f.users.markVerified(c.UserID, c.Channel)
	return true, nil
}

type sentCode struct {
	UserID int64
	Code   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (f *fakeSender) SendCode(_ context.Context, u *models.User, code string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentCode{UserID: u.ID, Code: code})
	return nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Code
}

type fakeProperties struct {
	mu   sync.Mutex
	byID map[int64]*models.Property
}

func newFakeProperties(props ...*models.Property) *fakeProperties {
	f := &fakeProperties{byID: map[int64]*models.Property{}}
	for _, p := range props {
		cp := *p
		f.byID[p.ID] = &cp
	}
	return f
}

func (f *fakeProperties) GetByID(_ context.Context, id int64) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProperties) ListByOwner(_ context.Context, ownerID int64) ([]*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Property
	for _, p := range f.byID {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProperties) SetSubscription(_ context.Context, id int64, level models.Tier, exp *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[id]; ok {
		p.SubscriptionLevel = level
		p.SubscriptionExpiresAt = exp
		p.Featured = level == models.TierPaid || level == models.TierPremium
		p.Premium = level == models.TierPremium
	}
	return nil
}

// fakeCheckouts mirrors the compare-and-set semantics of the SQL repository,
// including stamping the target on completion.
type fakeCheckouts struct {
	mu         sync.Mutex
	byID       map[string]*models.CheckoutSession
	users      *fakeUsers
	properties *fakeProperties
	setErr     error
}

func newFakeCheckouts(users *fakeUsers, props *fakeProperties) *fakeCheckouts {
	return &fakeCheckouts{byID: map[string]*models.CheckoutSession{}, users: users, properties: props}
}

func (f *fakeCheckouts) Create(_ context.Context, s *models.CheckoutSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeCheckouts) SetProviderSessionID(_ context.Context, id, psid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	if s, ok := f.byID[id]; ok {
		s.ProviderSessionID = psid
	}
	return nil
}

func (f *fakeCheckouts) GetByID(_ context.Context, id string) (*models.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeCheckouts) GetByProviderSessionID(_ context.Context, psid string) (*models.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.ProviderSessionID == psid {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCheckouts) Complete(ctx context.Context, id string, at time.Time, d time.Duration) (bool, error) {
	f.mu.Lock()
	s, ok := f.byID[id]
	if !ok || s.Status != models.CheckoutPending {
		f.mu.Unlock()
		return false, nil
	}
	s.Status = models.CheckoutPaid
	s.CompletedAt = &at
	rec := *s
	f.mu.Unlock()

	extend := func(cur *time.Time) *time.Time {
		base := at
		if cur != nil && cur.After(at) {
			base = *cur
		}
		exp := base.Add(d)
		return &exp
	}
	if rec.PropertyID != nil {
		p, _ := f.properties.GetByID(ctx, *rec.PropertyID)
		return true, f.properties.SetSubscription(ctx, p.ID, rec.Level, extend(p.SubscriptionExpiresAt))
	}
	u, _ := f.users.GetByID(ctx, rec.UserID)
	return true, f.users.SetSubscription(ctx, u.ID, rec.Level, extend(u.SubscriptionExpiresAt))
}

func (f *fakeCheckouts) Close(_ context.Context, id string, status models.CheckoutStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok || s.Status != models.CheckoutPending {
		return false, nil
	}
	s.Status = status
	s.CompletedAt = &at
	return true, nil
}

type fakeProvider struct {
	mu    sync.Mutex
	calls []ProviderCheckout
	err   error
	event *PaymentEvent
}

func (f *fakeProvider) CreateSession(_ context.Context, in ProviderCheckout) (*ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	id := "cs_test_" + in.ReferenceID
	return &ProviderSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (f *fakeProvider) ParseEvent(_ []byte, sig string) (*PaymentEvent, error) {
	if sig != "ok" {
		return nil, ErrWebhookSignature
	}
	return f.event, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

type fakeRenderer struct {
	last pdf.ReceiptData
}

func (f *fakeRenderer) RenderReceipt(d pdf.ReceiptData) ([]byte, error) {
	f.last = d
	return []byte("%PDF-fake"), nil
}

type fakeEmails struct {
	mu     sync.Mutex
	resets []string
}

func (f *fakeEmails) SendVerificationCode(string, string, string, time.Duration) error { return nil }

func (f *fakeEmails) SendPasswordResetEmail(_ string, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, token)
	return nil
}

type fakeResets struct {
	mu   sync.Mutex
	rows []*models.PasswordReset
}

func (f *fakeResets) Create(_ context.Context, userID int64, token string, exp time.Time) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr := &models.PasswordReset{ID: int64(len(f.rows) + 1), UserID: userID, Token: token, ExpiresAt: exp}
	f.rows = append(f.rows, pr)
	cp := *pr
	return &cp, nil
}

func (f *fakeResets) GetByToken(_ context.Context, token string) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Token == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeResets) MarkUsed(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.UsedAt == nil {
			now := time.Now()
			r.UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}
