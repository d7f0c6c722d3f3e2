package services

import "errors"

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidCredentials     = errors.New("invalid username or password")
	ErrInvalidOrExpiredCode   = errors.New("invalid or expired code")
	ErrValidation             = errors.New("validation error")
	ErrPaymentProvider        = errors.New("payment provider error")
	ErrInvalidTier            = errors.New("invalid tier")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrResendThrottled        = errors.New("resend throttled")
	ErrTooManyAttempts        = errors.New("too many attempts")
)
