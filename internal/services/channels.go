package services

import (
	"context"
	"fmt"
	"time"

	"realty/internal/models"
	"realty/internal/utils"
)

// CodeSender delivers a one-time code to a user over one channel.
type CodeSender interface {
	SendCode(ctx context.Context, user *models.User, code string, ttl time.Duration) error
}

type emailCodeSender struct {
	email EmailService
}

func NewEmailCodeSender(email EmailService) CodeSender {
	return &emailCodeSender{email: email}
}

func (s *emailCodeSender) SendCode(_ context.Context, user *models.User, code string, ttl time.Duration) error {
	if user.Email == "" {
		return fmt.Errorf("%w: user has no email", ErrValidation)
	}
	return s.email.SendVerificationCode(user.Email, user.Username, code, ttl)
}

type smsCodeSender struct {
	client *utils.MobizonClient
}

func NewSMSCodeSender(client *utils.MobizonClient) CodeSender {
	return &smsCodeSender{client: client}
}

func (s *smsCodeSender) SendCode(ctx context.Context, user *models.User, code string, _ time.Duration) error {
	if user.Phone == "" {
		return fmt.Errorf("%w: user has no phone", ErrValidation)
	}
	if _, err := s.client.SendSMS(ctx, user.Phone, codeText(code)); err != nil {
		return fmt.Errorf("mobizon error: %w", err)
	}
	return nil
}

type whatsAppCodeSender struct {
	client *utils.WhatsAppClient
}

func NewWhatsAppCodeSender(client *utils.WhatsAppClient) CodeSender {
	return &whatsAppCodeSender{client: client}
}

func (s *whatsAppCodeSender) SendCode(ctx context.Context, user *models.User, code string, _ time.Duration) error {
	if user.Phone == "" {
		return fmt.Errorf("%w: user has no phone", ErrValidation)
	}
	if err := s.client.SendText(ctx, user.Phone, codeText(code)); err != nil {
		return fmt.Errorf("whatsapp error: %w", err)
	}
	return nil
}

func codeText(code string) string {
	return fmt.Sprintf("Realty verification code: %s", code)
}
