package reset

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTokenTTL is the validity window for a reset token unless
// overridden by configuration.
const DefaultTokenTTL = time.Hour

var (
	// ErrUserNotFound is returned when no account exists for the requested email.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidOrExpiredToken covers both a token that never existed and one
	// past its TTL; callers must not be able to tell the two apart.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")

	// ErrPasswordMismatch is returned when the confirmation value does not
	// match the new password.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrWeakPassword is returned when the new password fails the minimum
	// length policy.
	ErrWeakPassword = errors.New("password must be at least 6 characters long")

	// ErrTokenGeneration is returned when a unique token value could not be
	// produced after the bounded number of attempts.
	ErrTokenGeneration = errors.New("failed to generate a unique reset token")
)

// Token is a single-use password reset credential. The plaintext value is
// only handed out once, at issue time; at most one token exists per owner.
type Token struct {
	Token     string    `json:"token" db:"token"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// IsExpired reports whether the token is past its validity window.
func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// RequestResetRequest is the forgot-password payload.
type RequestResetRequest struct {
	Email string `json:"email"`
}

// CompleteResetRequest is the reset-password payload. ConfirmPassword is a
// boundary-level equality check, validated before any store access.
type CompleteResetRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate applies the input-validation policy for completing a reset.
func (r *CompleteResetRequest) Validate() error {
	if r.NewPassword != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len(r.NewPassword) < 6 {
		return ErrWeakPassword
	}
	return nil
}
