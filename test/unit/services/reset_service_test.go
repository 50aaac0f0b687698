package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	impl "github.com/passlink/reset-service/internal/application/services"
	"github.com/passlink/reset-service/internal/core/domain/reset"
	"github.com/passlink/reset-service/internal/core/domain/user"
	tmocks "github.com/passlink/reset-service/test/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// directoryFor builds a user repo mock backed by a single account.
func directoryFor(u *user.User) *tmocks.UserRepositoryMock {
	return &tmocks.UserRepositoryMock{
		GetByEmailFn: func(ctx context.Context, email string) (*user.User, error) {
			if email == u.Email {
				return u, nil
			}
			return nil, user.ErrNotFound
		},
		UpdatePasswordFn: func(ctx context.Context, id uuid.UUID, hash string) error {
			if id != u.ID {
				return user.ErrNotFound
			}
			u.PasswordHash = hash
			return nil
		},
	}
}

func TestRequestReset_UnknownEmail(t *testing.T) {
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)
	svc := impl.NewResetService(tokens, &tmocks.UserRepositoryMock{}, &tmocks.EmailServiceMock{}, newTestLogger())

	err := svc.RequestReset(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, reset.ErrUserNotFound)
	require.Zero(t, tokens.TokenCount(), "no token may be created for an unknown email")
}

func TestRequestReset_IssuesTokenAndSendsEmail(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)

	var sentTo, sentToken string
	emails := &tmocks.EmailServiceMock{
		SendPasswordResetEmailFn: func(ctx context.Context, email, token string) error {
			sentTo, sentToken = email, token
			return nil
		},
	}

	svc := impl.NewResetService(tokens, directoryFor(u), emails, newTestLogger())

	// Mixed case and whitespace must normalize to the stored address.
	require.NoError(t, svc.RequestReset(context.Background(), "  User@Example.COM "))
	require.Equal(t, "user@example.com", sentTo)
	require.NotEmpty(t, sentToken)

	owner, err := tokens.Peek(context.Background(), sentToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, owner)
}

func TestRequestReset_DeliveryFailureNotSurfaced(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)
	emails := &tmocks.EmailServiceMock{
		SendPasswordResetEmailFn: func(ctx context.Context, email, token string) error {
			return context.DeadlineExceeded
		},
	}

	svc := impl.NewResetService(tokens, directoryFor(u), emails, newTestLogger())

	// Delivery failures are logged, not returned; the token stays valid.
	require.NoError(t, svc.RequestReset(context.Background(), u.Email))
	require.Equal(t, 1, tokens.TokenCount())
}

func TestRequestReset_ReplacesPreviousToken(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)

	var issued []string
	emails := &tmocks.EmailServiceMock{
		SendPasswordResetEmailFn: func(ctx context.Context, email, token string) error {
			issued = append(issued, token)
			return nil
		},
	}

	svc := impl.NewResetService(tokens, directoryFor(u), emails, newTestLogger())

	require.NoError(t, svc.RequestReset(context.Background(), u.Email))
	require.NoError(t, svc.RequestReset(context.Background(), u.Email))
	require.Len(t, issued, 2)

	// Only the second token is redeemable; the first died on replacement.
	require.ErrorIs(t, svc.VerifyToken(context.Background(), issued[0]), reset.ErrInvalidOrExpiredToken)
	require.NoError(t, svc.VerifyToken(context.Background(), issued[1]))
	require.Equal(t, 1, tokens.TokenCount())
}

func TestVerifyToken_IsRepeatableAndNonMutating(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)
	token, err := tokens.Issue(context.Background(), u.ID)
	require.NoError(t, err)

	svc := impl.NewResetService(tokens, directoryFor(u), &tmocks.EmailServiceMock{}, newTestLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.VerifyToken(context.Background(), token))
	}
	require.ErrorIs(t, svc.VerifyToken(context.Background(), "no-such-token"), reset.ErrInvalidOrExpiredToken)
}

func TestCompleteReset_FullFlow(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: "old-hash"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)

	var token string
	emails := &tmocks.EmailServiceMock{
		SendPasswordResetEmailFn: func(ctx context.Context, email, tok string) error {
			token = tok
			return nil
		},
	}

	svc := impl.NewResetService(tokens, directoryFor(u), emails, newTestLogger())

	require.NoError(t, svc.RequestReset(context.Background(), u.Email))
	require.NoError(t, svc.VerifyToken(context.Background(), token))

	req := &reset.CompleteResetRequest{Token: token, NewPassword: "newpass1", ConfirmPassword: "newpass1"}
	require.NoError(t, svc.CompleteReset(context.Background(), req))

	// The credential is stored hashed, never in the clear.
	require.NotEqual(t, "newpass1", u.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("newpass1")))

	// Consumption is permanent: the same token never redeems twice.
	repeat := &reset.CompleteResetRequest{Token: token, NewPassword: "newpass2", ConfirmPassword: "newpass2"}
	require.ErrorIs(t, svc.CompleteReset(context.Background(), repeat), reset.ErrInvalidOrExpiredToken)
	require.ErrorIs(t, svc.VerifyToken(context.Background(), token), reset.ErrInvalidOrExpiredToken)
}

func TestCompleteReset_ValidationBeforeStoreAccess(t *testing.T) {
	consumeCalls := 0
	tokens := &tmocks.ResetTokenRepositoryMock{
		ConsumeFn: func(ctx context.Context, token string) (uuid.UUID, error) {
			consumeCalls++
			return uuid.New(), nil
		},
	}
	svc := impl.NewResetService(tokens, &tmocks.UserRepositoryMock{}, &tmocks.EmailServiceMock{}, newTestLogger())

	err := svc.CompleteReset(context.Background(), &reset.CompleteResetRequest{Token: "t", NewPassword: "short", ConfirmPassword: "short"})
	require.ErrorIs(t, err, reset.ErrWeakPassword)

	err = svc.CompleteReset(context.Background(), &reset.CompleteResetRequest{Token: "t", NewPassword: "longenough", ConfirmPassword: "different"})
	require.ErrorIs(t, err, reset.ErrPasswordMismatch)

	require.Zero(t, consumeCalls, "validation failures must not touch the token store")
}

func TestCompleteReset_WeakPasswordDoesNotConsume(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)
	token, err := tokens.Issue(context.Background(), u.ID)
	require.NoError(t, err)

	svc := impl.NewResetService(tokens, directoryFor(u), &tmocks.EmailServiceMock{}, newTestLogger())

	err = svc.CompleteReset(context.Background(), &reset.CompleteResetRequest{Token: token, NewPassword: "abcd", ConfirmPassword: "abcd"})
	require.ErrorIs(t, err, reset.ErrWeakPassword)

	// The token survived the rejected attempt and still redeems.
	req := &reset.CompleteResetRequest{Token: token, NewPassword: "longenough", ConfirmPassword: "longenough"}
	require.NoError(t, svc.CompleteReset(context.Background(), req))
}

func TestCompleteReset_ConcurrentConsumersExactlyOneWins(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)
	token, err := tokens.Issue(context.Background(), u.ID)
	require.NoError(t, err)

	svc := impl.NewResetService(tokens, directoryFor(u), &tmocks.EmailServiceMock{}, newTestLogger())

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			req := &reset.CompleteResetRequest{Token: token, NewPassword: "newpass1", ConfirmPassword: "newpass1"}
			results <- svc.CompleteReset(context.Background(), req)
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, reset.ErrInvalidOrExpiredToken)
		}
	}
	require.Equal(t, 1, successes, "exactly one concurrent consumer may succeed")
}

func TestExpiredTokenNeverValidates(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)

	now := time.Now()
	tokens.Now = func() time.Time { return now }

	token, err := tokens.Issue(context.Background(), u.ID)
	require.NoError(t, err)

	// Move past the TTL without purging the record.
	now = now.Add(time.Hour + time.Minute)
	require.Equal(t, 1, tokens.TokenCount(), "record is still physically present")

	svc := impl.NewResetService(tokens, directoryFor(u), &tmocks.EmailServiceMock{}, newTestLogger())
	require.ErrorIs(t, svc.VerifyToken(context.Background(), token), reset.ErrInvalidOrExpiredToken)

	req := &reset.CompleteResetRequest{Token: token, NewPassword: "newpass1", ConfirmPassword: "newpass1"}
	require.ErrorIs(t, svc.CompleteReset(context.Background(), req), reset.ErrInvalidOrExpiredToken)

	require.NoError(t, tokens.DeleteExpired(context.Background()))
	require.Zero(t, tokens.TokenCount())
}

func TestCompleteReset_UpdateFailureDoesNotRestoreToken(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "user@example.com"}
	tokens := tmocks.NewMemoryResetTokenRepository(time.Hour)
	token, err := tokens.Issue(context.Background(), u.ID)
	require.NoError(t, err)

	users := directoryFor(u)
	users.UpdatePasswordFn = func(ctx context.Context, id uuid.UUID, hash string) error {
		return context.DeadlineExceeded
	}

	svc := impl.NewResetService(tokens, users, &tmocks.EmailServiceMock{}, newTestLogger())

	req := &reset.CompleteResetRequest{Token: token, NewPassword: "newpass1", ConfirmPassword: "newpass1"}
	require.Error(t, svc.CompleteReset(context.Background(), req))

	// Single-use wins over retry convenience: the user restarts the flow.
	require.ErrorIs(t, svc.VerifyToken(context.Background(), token), reset.ErrInvalidOrExpiredToken)
}
