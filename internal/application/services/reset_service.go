package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/passlink/reset-service/internal/core/domain/reset"
	"github.com/passlink/reset-service/internal/core/domain/user"
	"github.com/passlink/reset-service/internal/core/ports"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ResetService coordinates the request / verify / complete flow against the
// token store, the user repository and the email dispatcher.
type ResetService struct {
	tokenRepo    ports.ResetTokenRepository
	userRepo     ports.UserRepository
	emailService ports.EmailService
	logger       *logrus.Logger
}

func NewResetService(tokenRepo ports.ResetTokenRepository, userRepo ports.UserRepository, emailService ports.EmailService, logger *logrus.Logger) ports.ResetService {
	return &ResetService{
		tokenRepo:    tokenRepo,
		userRepo:     userRepo,
		emailService: emailService,
		logger:       logger,
	}
}

// RequestReset looks up the account, issues a fresh token (replacing any
// previous one for the same owner) and hands it to the email dispatcher.
// A delivery failure is logged but not surfaced: the token stays valid and a
// retried request simply replaces it.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	normalized := user.NormalizeEmail(email)

	u, err := s.userRepo.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return reset.ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	token, err := s.tokenRepo.Issue(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, u.Email, token); err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": u.ID}).WithError(err).Warn("failed to deliver password reset email")
	}

	return nil
}

// VerifyToken reports whether a token is currently redeemable. It never
// mutates state and does not shorten or extend the token's remaining lifetime.
func (s *ResetService) VerifyToken(ctx context.Context, token string) error {
	if _, err := s.tokenRepo.Peek(ctx, token); err != nil {
		if errors.Is(err, reset.ErrInvalidOrExpiredToken) {
			return reset.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to verify reset token: %w", err)
	}
	return nil
}

// CompleteReset validates the payload, atomically consumes the token and
// updates the owner's password. If the update fails after consumption the
// token is not restored; the user must restart the flow.
func (s *ResetService) CompleteReset(ctx context.Context, req *reset.CompleteResetRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	userID, err := s.tokenRepo.Consume(ctx, req.Token)
	if err != nil {
		if errors.Is(err, reset.ErrInvalidOrExpiredToken) {
			return reset.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashedPassword)); err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID}).WithError(err).Error("password update failed after token consumption")
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"user_id": userID}).Info("password reset completed")

	return nil
}
