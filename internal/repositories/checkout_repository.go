package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"realty/internal/db"
	"realty/internal/models"
)

type CheckoutRepository interface {
	Create(ctx context.Context, s *models.CheckoutSession) error
	SetProviderSessionID(ctx context.Context, id, providerSessionID string) error
	GetByID(ctx context.Context, id string) (*models.CheckoutSession, error)
	GetByProviderSessionID(ctx context.Context, providerSessionID string) (*models.CheckoutSession, error)
	// Complete moves a pending session to paid and stamps the entitlement
	// on its target. Returns false when the session was not pending.
	Complete(ctx context.Context, id string, at time.Time, duration time.Duration) (bool, error)
	// Close moves a pending session to a terminal non-paid status.
	Close(ctx context.Context, id string, status models.CheckoutStatus, at time.Time) (bool, error)
}

type checkoutRepository struct {
	DB *sql.DB
}

func NewCheckoutRepository(conn *sql.DB) CheckoutRepository {
	return &checkoutRepository{DB: conn}
}

const checkoutColumns = `
	id, user_id, property_id, level, amount, currency,
	COALESCE(provider_session_id, ''), status, created_at, completed_at
`

func scanCheckout(row rowScanner) (*models.CheckoutSession, error) {
	s := &models.CheckoutSession{}
	var (
		propertyID sql.NullInt64
		completed  sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &propertyID, &s.Level, &s.Amount, &s.Currency,
		&s.ProviderSessionID, &s.Status, &s.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}
	if propertyID.Valid {
		id := propertyID.Int64
		s.PropertyID = &id
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	return s, nil
}

func (r *checkoutRepository) Create(ctx context.Context, s *models.CheckoutSession) error {
	const q = `
		INSERT INTO checkout_sessions (id, user_id, property_id, level, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	if s.Status == "" {
		s.Status = models.CheckoutPending
	}
	if err := r.DB.QueryRowContext(ctx, q,
		s.ID, s.UserID, s.PropertyID, s.Level, s.Amount, s.Currency, s.Status,
	).Scan(&s.CreatedAt); err != nil {
		return fmt.Errorf("checkout create: %w", err)
	}
	return nil
}

func (r *checkoutRepository) SetProviderSessionID(ctx context.Context, id, providerSessionID string) error {
	const q = `UPDATE checkout_sessions SET provider_session_id = $2 WHERE id = $1`
	if _, err := r.DB.ExecContext(ctx, q, id, providerSessionID); err != nil {
		return fmt.Errorf("checkout set provider id: %w", err)
	}
	return nil
}

func (r *checkoutRepository) get(ctx context.Context, q string, arg any) (*models.CheckoutSession, error) {
	s, err := scanCheckout(r.DB.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkout get: %w", err)
	}
	return s, nil
}

func (r *checkoutRepository) GetByID(ctx context.Context, id string) (*models.CheckoutSession, error) {
	return r.get(ctx, `SELECT `+checkoutColumns+` FROM checkout_sessions WHERE id = $1`, id)
}

func (r *checkoutRepository) GetByProviderSessionID(ctx context.Context, providerSessionID string) (*models.CheckoutSession, error) {
	return r.get(ctx, `SELECT `+checkoutColumns+` FROM checkout_sessions WHERE provider_session_id = $1`, providerSessionID)
}

func (r *checkoutRepository) Complete(ctx context.Context, id string, at time.Time, duration time.Duration) (bool, error) {
	var applied bool
	err := db.WithTx(ctx, r.DB, func(ctx context.Context, tx db.DBTX) error {
		const cas = `
			UPDATE checkout_sessions
			SET status = 'paid', completed_at = $2
			WHERE id = $1 AND status = 'pending'
			RETURNING user_id, property_id, level
		`
		var (
			userID     int64
			propertyID sql.NullInt64
			level      models.Tier
		)
		err := tx.QueryRowContext(ctx, cas, id, at).Scan(&userID, &propertyID, &level)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("checkout complete: %w", err)
		}

		// Продление: от текущего срока, если он ещё не истёк.
		secs := int64(duration / time.Second)
		if propertyID.Valid {
			featured, premium := promoFlags(level)
			const q = `
				UPDATE properties
				SET subscription_level = $1,
				    subscription_expires_at = GREATEST(COALESCE(subscription_expires_at, $2), $2) + make_interval(secs => $3),
				    featured = $4,
				    premium = $5
				WHERE id = $6
			`
			if _, err := tx.ExecContext(ctx, q, level, at, secs, featured, premium, propertyID.Int64); err != nil {
				return fmt.Errorf("checkout stamp property: %w", err)
			}
		} else {
			const q = `
				UPDATE users
				SET subscription_level = $1,
				    subscription_expires_at = GREATEST(COALESCE(subscription_expires_at, $2), $2) + make_interval(secs => $3)
				WHERE id = $4
			`
			if _, err := tx.ExecContext(ctx, q, level, at, secs, userID); err != nil {
				return fmt.Errorf("checkout stamp user: %w", err)
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *checkoutRepository) Close(ctx context.Context, id string, status models.CheckoutStatus, at time.Time) (bool, error) {
	const q = `
		UPDATE checkout_sessions
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.DB.ExecContext(ctx, q, id, status, at)
	if err != nil {
		return false, fmt.Errorf("checkout close: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checkout close rows: %w", err)
	}
	return n > 0, nil
}
