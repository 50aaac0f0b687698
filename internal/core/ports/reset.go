package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/passlink/reset-service/internal/core/domain/reset"
)

// ResetTokenRepository owns the reset-token lifecycle: creation, lookup,
// atomic consumption and expiry. Implementations may use Postgres or Redis.
type ResetTokenRepository interface {
	// Issue generates a fresh high-entropy token for the owner, replacing any
	// existing token for that owner in the same atomic step, and returns the
	// plaintext value. This is the only time the value is available.
	Issue(ctx context.Context, userID uuid.UUID) (string, error)

	// Peek returns the owner of a currently valid token without consuming it.
	// Missing and expired tokens are both reported as
	// reset.ErrInvalidOrExpiredToken.
	Peek(ctx context.Context, token string) (uuid.UUID, error)

	// Consume atomically validates and deletes a token, returning its owner.
	// Of any number of concurrent Consume calls for the same value, exactly
	// one may succeed; the rest observe reset.ErrInvalidOrExpiredToken.
	Consume(ctx context.Context, token string) (uuid.UUID, error)

	// DeleteExpired purges tokens past their TTL. Read paths never honor
	// expired tokens regardless of whether this has run.
	DeleteExpired(ctx context.Context) error
}

// ResetService orchestrates the three user-visible reset operations.
type ResetService interface {
	RequestReset(ctx context.Context, email string) error
	VerifyToken(ctx context.Context, token string) error
	CompleteReset(ctx context.Context, req *reset.CompleteResetRequest) error
}
