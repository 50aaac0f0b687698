package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/passlink/reset-service/internal/core/domain/reset"
	"github.com/passlink/reset-service/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	// resetTokenPrefix prefixes Redis keys for reset tokens.
	// It's a static prefix and not a credential; silence gosec G101 here.
	resetTokenPrefix = "app:reset_token" //nolint:gosec
)

// issueScript replaces the owner's previous token and stores the new one,
// all server-side so two concurrent issues cannot leave two live tokens for
// one owner. Returns 0 when the generated value is already taken.
var issueScript = redis.NewScript(`
if redis.call('EXISTS', ARGV[3] .. ARGV[1]) == 1 then
	return 0
end
local old = redis.call('GET', KEYS[1])
if old then
	redis.call('DEL', ARGV[3] .. old)
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SET', ARGV[3] .. ARGV[1], ARGV[4], 'PX', ARGV[2])
return 1
`)

// consumeScript is the atomic find-and-delete: the GET and both DELs execute
// as one step, so exactly one of any number of racing consumers wins.
var consumeScript = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if not owner then
	return false
end
redis.call('DEL', KEYS[1])
redis.call('DEL', ARGV[1] .. owner)
return owner
`)

// ResetTokenRedisRepository stores reset tokens in Redis with a key per token
// value and a key per owner. Expiry rides on the key TTL.
type ResetTokenRedisRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *logrus.Logger
}

// Ensure ResetTokenRedisRepository implements ports.ResetTokenRepository
var _ ports.ResetTokenRepository = (*ResetTokenRedisRepository)(nil)

func NewResetTokenRedisRepository(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *ResetTokenRedisRepository {
	if ttl <= 0 {
		ttl = reset.DefaultTokenTTL
	}
	return &ResetTokenRedisRepository{redisClient: redisClient, ttl: ttl, logger: logger}
}

func (r *ResetTokenRedisRepository) keyByToken(token string) string {
	return fmt.Sprintf("%s:tok:%s", resetTokenPrefix, token)
}

func (r *ResetTokenRedisRepository) keyByUser(userID uuid.UUID) string {
	return fmt.Sprintf("%s:usr:%s", resetTokenPrefix, userID.String())
}

func tokenKeyPrefix() string {
	return fmt.Sprintf("%s:tok:", resetTokenPrefix)
}

// Issue generates a fresh token and stores it under both keys via a script.
func (r *ResetTokenRedisRepository) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}

		ok, err := issueScript.Run(ctx, r.redisClient,
			[]string{r.keyByUser(userID)},
			token, r.ttl.Milliseconds(), tokenKeyPrefix(), userID.String(),
		).Int()
		if err != nil {
			return "", fmt.Errorf("failed to store reset token in redis: %w", err)
		}
		if ok == 0 {
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{"attempt": attempt + 1}).Warn("redis: reset token collision, retrying")
			}
			continue
		}

		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"user_id": userID}).Info("redis: reset token issued")
		}
		return token, nil
	}

	return "", reset.ErrTokenGeneration
}

// Peek returns the owner without consuming the token.
func (r *ResetTokenRedisRepository) Peek(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := r.redisClient.Get(ctx, r.keyByToken(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, reset.ErrInvalidOrExpiredToken
		}
		return uuid.Nil, fmt.Errorf("failed to get reset token from redis: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse reset token owner: %w", err)
	}

	return userID, nil
}

// Consume atomically validates and deletes the token.
func (r *ResetTokenRedisRepository) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := consumeScript.Run(ctx, r.redisClient,
		[]string{r.keyByToken(token)},
		fmt.Sprintf("%s:usr:", resetTokenPrefix),
	).Text()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, reset.ErrInvalidOrExpiredToken
		}
		return uuid.Nil, fmt.Errorf("failed to consume reset token in redis: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse reset token owner: %w", err)
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"user_id": userID}).Info("redis: reset token consumed")
	}

	return userID, nil
}

// DeleteExpired is a no-op: Redis key TTLs handle physical expiry.
func (r *ResetTokenRedisRepository) DeleteExpired(ctx context.Context) error {
	return nil
}
