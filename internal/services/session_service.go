package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"realty/internal/models"
	"realty/internal/repositories"
)

// Claims: содержимое cookie сессии. ID (jti) указывает на запись в Redis.
type Claims struct {
	UserID int64       `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type SessionService interface {
	Create(ctx context.Context, user *models.User) (string, *models.Session, error)
	Resolve(ctx context.Context, token string) (*models.Session, error)
	Destroy(ctx context.Context, token string) error
	TTL() time.Duration
}

type sessionService struct {
	store  repositories.SessionStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionService(store repositories.SessionStore, secret string, ttl time.Duration) SessionService {
	return &sessionService{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *sessionService) TTL() time.Duration { return s.ttl }

func (s *sessionService) Create(ctx context.Context, user *models.User) (string, *models.Session, error) {
	now := s.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return "", nil, err
	}

	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, sess, nil
}

func (s *sessionService) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	opts = append(opts, jwt.WithTimeFunc(s.now))
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		// принимаем только HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, opts...)
	if err != nil || !t.Valid || claims.ID == "" {
		return nil, ErrAuthenticationRequired
	}
	return claims, nil
}

// Resolve validates the token and checks that its server-side session still
// exists; a logged-out session fails even with a valid signature.
func (s *sessionService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrAuthenticationRequired
	}
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != claims.UserID {
		return nil, ErrAuthenticationRequired
	}
	return sess, nil
}

func (s *sessionService) Destroy(ctx context.Context, token string) error {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, ErrAuthenticationRequired) {
			return nil
		}
		return err
	}
	return s.store.Delete(ctx, claims.ID)
}
