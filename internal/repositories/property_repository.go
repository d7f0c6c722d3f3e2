package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"realty/internal/models"
)

type PropertyRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Property, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Property, error)
	SetSubscription(ctx context.Context, id int64, level models.Tier, expiresAt *time.Time) error
}

type propertyRepository struct {
	DB *sql.DB
}

func NewPropertyRepository(db *sql.DB) PropertyRepository {
	return &propertyRepository{DB: db}
}

const propertyColumns = `
	id, owner_id, title, approval_status, subscription_level,
	subscription_expires_at, featured, premium, created_at
`

func scanProperty(row rowScanner) (*models.Property, error) {
	p := &models.Property{}
	var expires sql.NullTime
	if err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.ApprovalStatus, &p.SubscriptionLevel,
		&expires, &p.Featured, &p.Premium, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		p.SubscriptionExpiresAt = &t
	}
	return p, nil
}

func (r *propertyRepository) GetByID(ctx context.Context, id int64) (*models.Property, error) {
	q := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	p, err := scanProperty(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("property get: %w", err)
	}
	return p, nil
}

func (r *propertyRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Property, error) {
	q := `SELECT ` + propertyColumns + ` FROM properties WHERE owner_id = $1 ORDER BY id DESC`
	rows, err := r.DB.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("property list: %w", err)
	}
	defer rows.Close()

	var res []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("property list scan: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// SetSubscription stamps the tier and its promotional flags.
func (r *propertyRepository) SetSubscription(ctx context.Context, id int64, level models.Tier, expiresAt *time.Time) error {
	const q = `
		UPDATE properties
		SET subscription_level = $1,
		    subscription_expires_at = $2,
		    featured = $3,
		    premium = $4
		WHERE id = $5
	`
	featured, premium := promoFlags(level)
	if _, err := r.DB.ExecContext(ctx, q, level, expiresAt, featured, premium, id); err != nil {
		return fmt.Errorf("property set subscription: %w", err)
	}
	return nil
}

func promoFlags(level models.Tier) (featured, premium bool) {
	switch level {
	case models.TierPremium:
		return true, true
	case models.TierPaid:
		return true, false
	}
	return false, false
}
