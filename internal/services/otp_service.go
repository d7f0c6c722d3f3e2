package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"realty/internal/authz"
	"realty/internal/models"
	"realty/internal/repositories"
	"realty/internal/utils"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// Значения по умолчанию; переопределяются конфигом.
const (
	defaultCodeTTL           = 10 * time.Minute
	defaultMaxAttempts       = 5
	defaultMaxSendsPerWindow = 3
	defaultSendWindow        = 10 * time.Minute
)

type OTPOptions struct {
	TTL               time.Duration
	MaxAttempts       int
	MaxSendsPerWindow int
	SendWindow        time.Duration
	HashCost          int
	Now               func() time.Time
}

type VerifyResult struct {
	Channel models.Channel `json:"channel"`
	// AlreadyVerified is set when the code had been consumed before this call;
	// no state was changed.
	AlreadyVerified bool `json:"alreadyVerified"`
}

type OTPService struct {
	repo    repositories.OTPRepository
	users   repositories.UserRepository
	senders map[models.Channel]CodeSender
	opts    OTPOptions
	log     *zap.Logger
}

func NewOTPService(
	repo repositories.OTPRepository,
	users repositories.UserRepository,
	senders map[models.Channel]CodeSender,
	opts OTPOptions,
	log *zap.Logger,
) *OTPService {
	if opts.TTL <= 0 {
		opts.TTL = defaultCodeTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.MaxSendsPerWindow <= 0 {
		opts.MaxSendsPerWindow = defaultMaxSendsPerWindow
	}
	if opts.SendWindow <= 0 {
		opts.SendWindow = defaultSendWindow
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &OTPService{
		repo:    repo,
		users:   users,
		senders: senders,
		opts:    opts,
		log:     log.With(zap.String("component", "otp")),
	}
}

func (s *OTPService) TTL() time.Duration { return s.opts.TTL }

// Issue creates a new code for (userID, channel), supersedes any earlier live
// code for the pair and sends it out of band. Каждая отправка даёт новый код.
func (s *OTPService) Issue(ctx context.Context, userID int64, channel models.Channel) (*models.OneTimeCode, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, channel)
	}
	sender, ok := s.senders[channel]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q is not available", ErrValidation, channel)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	now := s.opts.Now()
	cnt, err := s.repo.CountRecentSends(ctx, userID, channel, now.Add(-s.opts.SendWindow))
	if err != nil {
		return nil, err
	}
	if cnt >= s.opts.MaxSendsPerWindow {
		return nil, ErrResendThrottled
	}

	code, err := utils.NewNumericCode(CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.HashCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt generate: %w", err)
	}

	rec := &models.OneTimeCode{
		UserID:    userID,
		Channel:   channel,
		CodeHash:  string(hash),
		SentAt:    now,
		ExpiresAt: now.Add(s.opts.TTL),
	}
	if err := s.repo.Replace(ctx, rec); err != nil {
		return nil, err
	}

	if err := sender.SendCode(ctx, user, code, s.opts.TTL); err != nil {
		s.log.Warn("code dispatch failed",
			zap.Int64("user_id", userID), zap.String("channel", string(channel)), zap.Error(err))
		return nil, fmt.Errorf("dispatch code: %w", err)
	}

	s.log.Info("code issued",
		zap.Int64("user_id", userID),
		zap.String("channel", string(channel)),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return rec, nil
}

// Verify checks code against the current code for (userID, channel).
// A code verifies at most once; repeating a successful verification within
// the code's lifetime returns AlreadyVerified without side effects.
func (s *OTPService) Verify(ctx context.Context, userID int64, channel models.Channel, code string) (*VerifyResult, error) {
	if !utils.IsNumericCode(code, CodeLength) {
		return nil, fmt.Errorf("%w: code must be %d digits", ErrValidation, CodeLength)
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, channel)
	}

	cur, err := s.repo.GetCurrent(ctx, userID, channel)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrInvalidOrExpiredCode
	}

	// Истёкший код не проходит никогда, даже повторно.
	now := s.opts.Now()
	if cur.Expired(now) {
		return nil, ErrInvalidOrExpiredCode
	}

	match := bcrypt.CompareHashAndPassword([]byte(cur.CodeHash), []byte(code)) == nil
	if cur.Consumed() {
		if match {
			return &VerifyResult{Channel: channel, AlreadyVerified: true}, nil
		}
		return nil, ErrInvalidOrExpiredCode
	}

	if !match {
		attempts, err := s.repo.IncrementAttempts(ctx, cur.ID)
		if err != nil {
			return nil, err
		}
		if attempts >= s.opts.MaxAttempts {
			if err := s.repo.Supersede(ctx, cur.ID, now); err != nil {
				return nil, err
			}
			s.log.Warn("code locked after failed attempts", zap.Int64("user_id", userID), zap.Int("attempts", attempts))
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidOrExpiredCode
	}

	won, err := s.repo.Consume(ctx, cur, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// Кто-то успел раньше: успех только если код действительно погашен.
		again, err := s.repo.GetCurrent(ctx, userID, channel)
		if err != nil {
			return nil, err
		}
		if again != nil && again.ID == cur.ID && again.Consumed() {
			return &VerifyResult{Channel: channel, AlreadyVerified: true}, nil
		}
		return nil, ErrInvalidOrExpiredCode
	}

	s.log.Info("code verified", zap.Int64("user_id", userID), zap.String("channel", string(channel)))
	return &VerifyResult{Channel: channel}, nil
}

// Resend issues a fresh code. The caller must be the user or an admin.
func (s *OTPService) Resend(ctx context.Context, callerID int64, callerRole models.Role, userID int64, channel models.Channel) (*models.OneTimeCode, error) {
	if callerID != userID && !authz.IsAdmin(callerRole) {
		return nil, ErrForbidden
	}
	return s.Issue(ctx, userID, channel)
}
