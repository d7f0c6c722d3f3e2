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

type OTPRepository interface {
	Replace(ctx context.Context, code *models.OneTimeCode) error
	GetCurrent(ctx context.Context, userID int64, channel models.Channel) (*models.OneTimeCode, error)
	CountRecentSends(ctx context.Context, userID int64, channel models.Channel, since time.Time) (int, error)
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	Supersede(ctx context.Context, id int64, at time.Time) error
	Consume(ctx context.Context, code *models.OneTimeCode, at time.Time) (bool, error)
}

type otpRepository struct {
	DB *sql.DB
}

func NewOTPRepository(conn *sql.DB) OTPRepository {
	return &otpRepository{DB: conn}
}

// Replace supersedes every live code of the same user/channel and inserts
// code in one transaction, so only the newest code can be verified.
func (r *otpRepository) Replace(ctx context.Context, code *models.OneTimeCode) error {
	return db.WithTx(ctx, r.DB, func(ctx context.Context, tx db.DBTX) error {
		const supersede = `
			UPDATE one_time_codes
			SET superseded_at = $3
			WHERE user_id = $1 AND channel = $2
			  AND consumed_at IS NULL AND superseded_at IS NULL
		`
		if _, err := tx.ExecContext(ctx, supersede, code.UserID, code.Channel, code.SentAt); err != nil {
			return fmt.Errorf("otp supersede previous: %w", err)
		}

		const insert = `
			INSERT INTO one_time_codes (user_id, channel, code_hash, sent_at, expires_at, attempts)
			VALUES ($1, $2, $3, $4, $5, 0)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, insert,
			code.UserID, code.Channel, code.CodeHash, code.SentAt, code.ExpiresAt,
		).Scan(&code.ID); err != nil {
			return fmt.Errorf("otp create: %w", err)
		}
		return nil
	})
}

// GetCurrent возвращает последнюю не вытесненную запись (она может быть уже погашена).
func (r *otpRepository) GetCurrent(ctx context.Context, userID int64, channel models.Channel) (*models.OneTimeCode, error) {
	const q = `
		SELECT id, user_id, channel, code_hash, sent_at, expires_at, consumed_at, attempts
		FROM one_time_codes
		WHERE user_id = $1 AND channel = $2 AND superseded_at IS NULL
		ORDER BY sent_at DESC, id DESC
		LIMIT 1
	`
	var (
		c        models.OneTimeCode
		consumed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, userID, channel).Scan(
		&c.ID, &c.UserID, &c.Channel, &c.CodeHash, &c.SentAt, &c.ExpiresAt, &consumed, &c.Attempts,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("otp current: %w", err)
	}
	if consumed.Valid {
		t := consumed.Time
		c.ConsumedAt = &t
	}
	return &c, nil
}

// CountRecentSends: сколько кодов выдано за окно (для троттлинга).
func (r *otpRepository) CountRecentSends(ctx context.Context, userID int64, channel models.Channel, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM one_time_codes
		WHERE user_id = $1 AND channel = $2 AND sent_at >= $3
	`
	var n int
	if err := r.DB.QueryRowContext(ctx, q, userID, channel, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("otp count recent: %w", err)
	}
	return n, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	const q = `
		UPDATE one_time_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("otp increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *otpRepository) Supersede(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE one_time_codes SET superseded_at = $2 WHERE id = $1 AND superseded_at IS NULL`
	if _, err := r.DB.ExecContext(ctx, q, id, at); err != nil {
		return fmt.Errorf("otp supersede: %w", err)
	}
	return nil
}

// Consume marks the code used and flips the user's verified flag for the
// code's channel. The update is conditional on the code still being live, so
// of several concurrent callers exactly one gets true.
func (r *otpRepository) Consume(ctx context.Context, code *models.OneTimeCode, at time.Time) (bool, error) {
	var won bool
	err := db.WithTx(ctx, r.DB, func(ctx context.Context, tx db.DBTX) error {
		const consume = `
			UPDATE one_time_codes
			SET consumed_at = $2
			WHERE id = $1
			  AND consumed_at IS NULL
			  AND superseded_at IS NULL
			  AND expires_at > $2
		`
		res, err := tx.ExecContext(ctx, consume, code.ID, at)
		if err != nil {
			return fmt.Errorf("otp consume: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("otp consume rows: %w", err)
		}
		if n == 0 {
			return nil
		}

		flag := "phone_verified"
		if code.Channel == models.ChannelEmail {
			flag = "email_verified"
		}
		q := `UPDATE users SET ` + flag + ` = TRUE, needs_verification = FALSE WHERE id = $1`
		if _, err := tx.ExecContext(ctx, q, code.UserID); err != nil {
			return fmt.Errorf("otp mark user verified: %w", err)
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if won {
		code.ConsumedAt = &at
	}
	return won, nil
}
