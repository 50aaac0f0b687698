package repositories

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/passlink/reset-service/internal/core/domain/reset"
	"github.com/passlink/reset-service/internal/core/ports"
	"github.com/passlink/reset-service/internal/infrastructure/db"
	"github.com/sirupsen/logrus"
)

const (
	// tokenEntropyBytes is the amount of randomness per token; 32 bytes
	// hex-encoded yields a 64-character value.
	tokenEntropyBytes = 32

	// maxIssueAttempts bounds the retry loop on a token uniqueness violation.
	maxIssueAttempts = 3

	pqUniqueViolation = "23505"
)

// ResetTokenDBRepository stores reset tokens in Postgres. Consumption relies
// on DELETE ... RETURNING so that validate-and-delete is a single atomic
// statement: of two concurrent consumers exactly one sees the row.
type ResetTokenDBRepository struct {
	db     *db.Database
	ttl    time.Duration
	logger *logrus.Logger
}

// Ensure ResetTokenDBRepository implements ports.ResetTokenRepository
var _ ports.ResetTokenRepository = (*ResetTokenDBRepository)(nil)

// NewResetTokenDBRepository creates a Postgres-backed reset token repository.
func NewResetTokenDBRepository(database *db.Database, ttl time.Duration, logger *logrus.Logger) *ResetTokenDBRepository {
	if ttl <= 0 {
		ttl = reset.DefaultTokenTTL
	}
	return &ResetTokenDBRepository{db: database, ttl: ttl, logger: logger}
}

// generateToken produces a high-entropy opaque token value.
func generateToken() (string, error) {
	bytes := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// Issue replaces any existing token for the owner and inserts a fresh one in
// a single transaction. A uniqueness collision on the token value is retried
// a bounded number of times.
func (r *ResetTokenDBRepository) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}

		now := time.Now()
		err = r.insertReplacing(ctx, userID, token, now, now.Add(r.ttl))
		if err == nil {
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{"user_id": userID}).Info("db: reset token issued")
			}
			return token, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{"attempt": attempt + 1}).Warn("db: reset token collision, retrying")
			}
			continue
		}

		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	return "", reset.ErrTokenGeneration
}

func (r *ResetTokenDBRepository) insertReplacing(ctx context.Context, userID uuid.UUID, token string, createdAt, expiresAt time.Time) error {
	tx, err := r.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// At most one token per owner: the old one dies with the new insert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete previous token: %w", err)
	}

	query := `
		INSERT INTO password_reset_tokens (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, token, userID, createdAt, expiresAt); err != nil {
		return err
	}

	return tx.Commit()
}

// Peek returns the owner of a valid token without consuming it. Expired rows
// are treated as missing even before the sweep removes them.
func (r *ResetTokenDBRepository) Peek(ctx context.Context, token string) (uuid.UUID, error) {
	var rec reset.Token
	query := `
		SELECT token, user_id, created_at, expires_at
		FROM password_reset_tokens
		WHERE token = $1 AND expires_at > NOW()`

	err := r.db.DB.GetContext(ctx, &rec, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, reset.ErrInvalidOrExpiredToken
		}
		return uuid.Nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	// The query already filters on expiry; the guard covers clock skew
	// between the database and the application.
	if rec.IsExpired() {
		return uuid.Nil, reset.ErrInvalidOrExpiredToken
	}

	return rec.UserID, nil
}

// Consume validates and deletes the token in one statement.
func (r *ResetTokenDBRepository) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	query := `
		DELETE FROM password_reset_tokens
		WHERE token = $1 AND expires_at > NOW()
		RETURNING user_id`

	err := r.db.DB.QueryRowxContext(ctx, query, token).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, reset.ErrInvalidOrExpiredToken
		}
		return uuid.Nil, fmt.Errorf("failed to consume reset token: %w", err)
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"user_id": userID}).Info("db: reset token consumed")
	}

	return userID, nil
}

// DeleteExpired removes tokens past their TTL.
func (r *ResetTokenDBRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM password_reset_tokens WHERE expires_at <= NOW()`

	result, err := r.db.DB.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 && r.logger != nil {
		r.logger.WithFields(logrus.Fields{"rows": rowsAffected}).Info("cleaned up expired reset tokens")
	}

	return nil
}
