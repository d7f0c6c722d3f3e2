package client

import (
	"context"
	"errors"
	"sync"

	"realty/internal/gate"
	"realty/internal/models"
)

// Session is the client's identity cache. The user is fetched once and kept
// until login, logout, verification or a 401 invalidates it.
type Session struct {
	api *Client

	mu     sync.Mutex
	loaded bool
	user   *models.User
	gen    uint64
}

func NewSession(api *Client) *Session {
	s := &Session{api: api}
	api.OnUnauthorized(s.clear)
	return s
}

func (s *Session) clear() {
	s.mu.Lock()
	s.loaded, s.user = true, nil
	s.gen++
	s.mu.Unlock()
}

// Invalidate drops the cached identity; the next User call refetches.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.loaded, s.user = false, nil
	s.gen++
	s.mu.Unlock()
}

// User returns the cached identity, fetching it on first use. A nil user
// with a nil error means there is no session.
func (s *Session) User(ctx context.Context) (*models.User, error) {
	s.mu.Lock()
	if s.loaded {
		u := s.user
		s.mu.Unlock()
		return u, nil
	}
	gen := s.gen
	s.mu.Unlock()

	u, err := s.api.User(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && !errors.Is(err, ErrUnauthenticated) {
		return nil, err
	}
	if errors.Is(err, ErrUnauthenticated) {
		u = nil
	}
	// результат устарел, если кэш сбросили во время запроса
	if gen == s.gen {
		s.loaded, s.user = true, u
		s.gen++
	}
	return u, nil
}

// Decision evaluates the gate against the cached identity without fetching.
func (s *Session) Decision(requireAdmin bool) gate.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gate.Evaluate(gate.Input{
		Loading:      !s.loaded,
		User:         s.user,
		RequireAdmin: requireAdmin,
	})
}

// Guard fetches the identity if needed and evaluates the gate.
func (s *Session) Guard(ctx context.Context, requireAdmin bool) (gate.Decision, error) {
	if _, err := s.User(ctx); err != nil {
		return gate.Decision{State: gate.StateLoading}, err
	}
	return s.Decision(requireAdmin), nil
}

func (s *Session) Login(ctx context.Context, username, password string) (*models.User, error) {
	s.Invalidate()
	return s.api.Login(ctx, username, password)
}

func (s *Session) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	s.Invalidate()
	return s.api.Register(ctx, req)
}

func (s *Session) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.clear()
	return err
}

// VerifyOTP refreshes the identity after a successful verification so the
// gate sees the new flags.
func (s *Session) VerifyOTP(ctx context.Context, code string, channel models.Channel) (*OTPResult, error) {
	res, err := s.api.VerifyOTP(ctx, code, channel)
	if err != nil {
		return nil, err
	}
	s.Invalidate()
	return res, nil
}
