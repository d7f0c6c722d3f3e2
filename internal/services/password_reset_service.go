package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"realty/internal/repositories"
	"realty/internal/utils"
)

const passwordResetTTL = time.Hour

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	repo     repositories.PasswordResetRepository
	emails   EmailService
	auth     AuthService
	now      func() time.Time
	log      *zap.Logger
}

func NewPasswordResetService(userRepo repositories.UserRepository, repo repositories.PasswordResetRepository, emails EmailService, auth AuthService, log *zap.Logger) PasswordResetService {
	return &passwordResetService{
		userRepo: userRepo,
		repo:     repo,
		emails:   emails,
		auth:     auth,
		now:      time.Now,
		log:      log.With(zap.String("component", "password_reset")),
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		// don't leak existence
		s.log.Info("reset requested for unknown email")
		return nil
	}

	token, err := utils.NewOpaqueToken(32)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, user.ID, token, s.now().Add(passwordResetTTL)); err != nil {
		return err
	}

	if s.emails != nil {
		if err := s.emails.SendPasswordResetEmail(user.Email, token); err != nil {
			s.log.Warn("reset email not sent", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return fmt.Errorf("%w: token and password are required", ErrValidation)
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	pr, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if pr == nil || pr.UsedAt != nil || s.now().After(pr.ExpiresAt) {
		return ErrInvalidOrExpiredCode
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	// сначала гасим токен, чтобы его нельзя было использовать дважды
	ok, err := s.repo.MarkUsed(ctx, pr.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}
	if err := s.userRepo.UpdatePassword(ctx, pr.UserID, hash); err != nil {
		return err
	}
	s.log.Info("password reset", zap.Int64("user_id", pr.UserID))
	return nil
}
