package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendVerificationCode(email, username, code string, ttl time.Duration) error
	SendPasswordResetEmail(email, token string) error
}

// mailer is satisfied by *gomail.Dialer.
type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	dialer mailer
	from   string
	dryRun bool
	log    *zap.Logger
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, dryRun bool, log *zap.Logger) EmailService {
	return &emailService{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
		dryRun: dryRun,
		log:    log,
	}
}

func (s *emailService) send(m *gomail.Message, to string) error {
	if s.dryRun {
		s.log.Info("email dry-run", zap.String("to", to), zap.Strings("subject", m.GetHeader("Subject")))
		return nil
	}
	return s.dialer.DialAndSend(m)
}

func (s *emailService) SendVerificationCode(email, username, code string, ttl time.Duration) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your verification code")

	body := fmt.Sprintf(`
		<h2>Hi %s,</h2>
		<p>Your verification code is <strong>%s</strong>.</p>
		<p>The code expires in %d minutes. If you did not request it, ignore this email.</p>
	`, username, code, int(ttl.Minutes()))
	m.SetBody("text/html", body)

	if err := s.send(m, email); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

func (s *emailService) SendPasswordResetEmail(email, token string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password reset request")

	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p>Use the following token to reset your password: <strong>%s</strong></p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, token)
	m.SetBody("text/html", body)

	if err := s.send(m, email); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}
