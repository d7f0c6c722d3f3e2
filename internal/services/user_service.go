package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"realty/internal/authz"
	"realty/internal/models"
	"realty/internal/repositories"
)

// CodeIssuer is the part of OTPService used during registration.
type CodeIssuer interface {
	Issue(ctx context.Context, userID int64, channel models.Channel) (*models.OneTimeCode, error)
}

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Authenticate(ctx context.Context, login, password string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

type userService struct {
	repo  repositories.UserRepository
	auth  AuthService
	codes CodeIssuer
	log   *zap.Logger
}

func NewUserService(repo repositories.UserRepository, auth AuthService, codes CodeIssuer, log *zap.Logger) UserService {
	return &userService{
		repo:  repo,
		auth:  auth,
		codes: codes,
		log:   log.With(zap.String("component", "users")),
	}
}

// Register creates an account that must verify its email before passing the
// gate. The welcome code is best-effort.
func (s *userService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	role := req.Role
	if role == "" {
		role = models.RoleBuyer
	}
	if !authz.SelfAssignable(role) {
		return nil, fmt.Errorf("%w: role %q cannot be chosen at sign-up", ErrValidation, role)
	}

	if u, err := s.repo.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if u != nil {
		return nil, fmt.Errorf("%w: username is taken", ErrConflict)
	}
	if u, err := s.repo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if u != nil {
		return nil, fmt.Errorf("%w: email is already registered", ErrConflict)
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:          username,
		Email:             email,
		Phone:             strings.TrimSpace(req.Phone),
		PasswordHash:      hash,
		Role:              role,
		NeedsVerification: true,
		SubscriptionLevel: models.TierFree,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(role)))

	if s.codes != nil {
		if _, err := s.codes.Issue(ctx, user.ID, models.ChannelEmail); err != nil {
			// warn but do not fail registration
			s.log.Warn("welcome code not sent", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

// Authenticate accepts a username or an email as login.
func (s *userService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	user, err := s.repo.GetByUsername(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil && strings.Contains(login, "@") {
		if user, err = s.repo.GetByEmail(ctx, login); err != nil {
			return nil, err
		}
	}
	if user == nil || !s.auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *userService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
