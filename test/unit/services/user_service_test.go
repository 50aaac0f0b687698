package services_test

import (
	"context"
	"testing"

	impl "github.com/passlink/reset-service/internal/application/services"
	"github.com/passlink/reset-service/internal/core/domain/user"
	tmocks "github.com/passlink/reset-service/test/mocks"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateUser_DuplicateEmail(t *testing.T) {
	ur := &tmocks.UserRepositoryMock{
		GetByEmailFn: func(ctx context.Context, email string) (*user.User, error) {
			return &user.User{Email: email}, nil
		},
	}
	svc := impl.NewUserService(ur, newTestLogger())

	_, err := svc.CreateUser(context.Background(), &user.CreateUserRequest{Email: "a@b.com", Password: "secret1"})
	require.Error(t, err)
}

func TestCreateUser_Success(t *testing.T) {
	var created *user.User
	ur := &tmocks.UserRepositoryMock{
		CreateFn: func(ctx context.Context, u *user.User) error {
			created = u
			return nil
		},
	}
	svc := impl.NewUserService(ur, newTestLogger())

	u, err := svc.CreateUser(context.Background(), &user.CreateUserRequest{Email: " OK@X.com ", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "ok@x.com", u.Email)
	require.NotNil(t, created)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret1")))
}
