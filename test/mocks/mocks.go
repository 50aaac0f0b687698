package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/passlink/reset-service/internal/core/domain/reset"
	"github.com/passlink/reset-service/internal/core/domain/user"
)

// UserRepositoryMock is a lightweight function-field mock for UserRepository
type UserRepositoryMock struct {
	CreateFn         func(ctx context.Context, u *user.User) error
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmailFn     func(ctx context.Context, email string) (*user.User, error)
	UpdatePasswordFn func(ctx context.Context, id uuid.UUID, passwordHash string) error
}

func (m *UserRepositoryMock) Create(ctx context.Context, u *user.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, u)
	}
	return nil
}
func (m *UserRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, user.ErrNotFound
}
func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}
	return nil, user.ErrNotFound
}
func (m *UserRepositoryMock) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if m.UpdatePasswordFn != nil {
		return m.UpdatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

// ResetTokenRepositoryMock is a function-field mock for ResetTokenRepository
type ResetTokenRepositoryMock struct {
	IssueFn         func(ctx context.Context, userID uuid.UUID) (string, error)
	PeekFn          func(ctx context.Context, token string) (uuid.UUID, error)
	ConsumeFn       func(ctx context.Context, token string) (uuid.UUID, error)
	DeleteExpiredFn func(ctx context.Context) error
}

func (m *ResetTokenRepositoryMock) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.IssueFn != nil {
		return m.IssueFn(ctx, userID)
	}
	return "mock-token", nil
}
func (m *ResetTokenRepositoryMock) Peek(ctx context.Context, token string) (uuid.UUID, error) {
	if m.PeekFn != nil {
		return m.PeekFn(ctx, token)
	}
	return uuid.Nil, reset.ErrInvalidOrExpiredToken
}
func (m *ResetTokenRepositoryMock) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	if m.ConsumeFn != nil {
		return m.ConsumeFn(ctx, token)
	}
	return uuid.Nil, reset.ErrInvalidOrExpiredToken
}
func (m *ResetTokenRepositoryMock) DeleteExpired(ctx context.Context) error {
	if m.DeleteExpiredFn != nil {
		return m.DeleteExpiredFn(ctx)
	}
	return nil
}

// EmailServiceMock records sent reset emails
type EmailServiceMock struct {
	SendPasswordResetEmailFn func(ctx context.Context, email, token string) error
}

func (m *EmailServiceMock) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	if m.SendPasswordResetEmailFn != nil {
		return m.SendPasswordResetEmailFn(ctx, email, token)
	}
	return nil
}

// ResetServiceMock is a function-field mock for ResetService
type ResetServiceMock struct {
	RequestResetFn  func(ctx context.Context, email string) error
	VerifyTokenFn   func(ctx context.Context, token string) error
	CompleteResetFn func(ctx context.Context, req *reset.CompleteResetRequest) error
}

func (m *ResetServiceMock) RequestReset(ctx context.Context, email string) error {
	if m.RequestResetFn != nil {
		return m.RequestResetFn(ctx, email)
	}
	return nil
}
func (m *ResetServiceMock) VerifyToken(ctx context.Context, token string) error {
	if m.VerifyTokenFn != nil {
		return m.VerifyTokenFn(ctx, token)
	}
	return nil
}
func (m *ResetServiceMock) CompleteReset(ctx context.Context, req *reset.CompleteResetRequest) error {
	if m.CompleteResetFn != nil {
		return m.CompleteResetFn(ctx, req)
	}
	return nil
}

// UserServiceMock is a function-field mock for UserService
type UserServiceMock struct {
	CreateUserFn     func(ctx context.Context, req *user.CreateUserRequest) (*user.User, error)
	GetUserFn        func(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetUserByEmailFn func(ctx context.Context, email string) (*user.User, error)
}

func (m *UserServiceMock) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if m.CreateUserFn != nil {
		return m.CreateUserFn(ctx, req)
	}
	return &user.User{ID: uuid.New(), Email: req.Email}, nil
}
func (m *UserServiceMock) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.GetUserFn != nil {
		return m.GetUserFn(ctx, id)
	}
	return nil, user.ErrNotFound
}
func (m *UserServiceMock) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	if m.GetUserByEmailFn != nil {
		return m.GetUserByEmailFn(ctx, email)
	}
	return nil, user.ErrNotFound
}

// MemoryResetTokenRepository is an in-memory ResetTokenRepository with the
// same contract as the real stores: one token per owner, atomic consume and
// TTL enforcement on every read path. Used to exercise coordinator semantics
// and concurrency properties without a database.
type MemoryResetTokenRepository struct {
	mu       sync.Mutex
	ttl      time.Duration
	byToken map[string]memoryToken
	byOwner map[uuid.UUID]string
	Now     func() time.Time
}

type memoryToken struct {
	userID    uuid.UUID
	expiresAt time.Time
}

func NewMemoryResetTokenRepository(ttl time.Duration) *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{
		ttl:     ttl,
		byToken: make(map[string]memoryToken),
		byOwner: make(map[uuid.UUID]string),
		Now:     time.Now,
	}
}

func (m *MemoryResetTokenRepository) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byOwner[userID]; ok {
		delete(m.byToken, old)
	}

	token := uuid.NewString() + uuid.NewString()
	m.byToken[token] = memoryToken{userID: userID, expiresAt: m.Now().Add(m.ttl)}
	m.byOwner[userID] = token
	return token, nil
}

func (m *MemoryResetTokenRepository) Peek(ctx context.Context, token string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok || m.Now().After(rec.expiresAt) {
		return uuid.Nil, reset.ErrInvalidOrExpiredToken
	}
	return rec.userID, nil
}

func (m *MemoryResetTokenRepository) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok || m.Now().After(rec.expiresAt) {
		return uuid.Nil, reset.ErrInvalidOrExpiredToken
	}
	delete(m.byToken, token)
	delete(m.byOwner, rec.userID)
	return rec.userID, nil
}

func (m *MemoryResetTokenRepository) DeleteExpired(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	for token, rec := range m.byToken {
		if now.After(rec.expiresAt) {
			delete(m.byToken, token)
			delete(m.byOwner, rec.userID)
		}
	}
	return nil
}

// TokenCount reports the number of stored tokens, expired or not.
func (m *MemoryResetTokenRepository) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}
