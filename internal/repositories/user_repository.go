package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"realty/internal/models"
)

// ErrDuplicate is returned when a unique username or email already exists.
var ErrDuplicate = errors.New("duplicate record")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	SetSubscription(ctx context.Context, userID int64, level models.Tier, expiresAt *time.Time) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `
	id, username, email, phone, password_hash, role,
	email_verified, phone_verified, needs_verification,
	subscription_level, subscription_expires_at, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var expires sql.NullTime
	if err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Role,
		&u.EmailVerified, &u.PhoneVerified, &u.NeedsVerification,
		&u.SubscriptionLevel, &expires, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		u.SubscriptionExpiresAt = &t
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (
			username, email, phone, password_hash, role,
			email_verified, phone_verified, needs_verification, subscription_level
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at
	`
	if user.SubscriptionLevel == "" {
		user.SubscriptionLevel = models.TierFree
	}
	err := r.DB.QueryRowContext(ctx, q,
		user.Username,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.EmailVerified,
		user.PhoneVerified,
		user.NeedsVerification,
		user.SubscriptionLevel,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user get: %w", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "LOWER(username) = LOWER($1)", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	defer rows.Close()

	var res []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("user list scan: %w", err)
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	return nil
}

func (r *userRepository) SetSubscription(ctx context.Context, userID int64, level models.Tier, expiresAt *time.Time) error {
	const q = `UPDATE users SET subscription_level = $1, subscription_expires_at = $2 WHERE id = $3`
	if _, err := r.DB.ExecContext(ctx, q, level, expiresAt, userID); err != nil {
		return fmt.Errorf("user set subscription: %w", err)
	}
	return nil
}
