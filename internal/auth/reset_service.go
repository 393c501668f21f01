// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/notify"
	"github.com/holomush/warden/internal/token"
	"github.com/holomush/warden/pkg/errutil"
)

// Reset dispatch defaults.
const (
	DefaultDispatchTimeout = 30 * time.Second
	DefaultMaxInFlight     = 64
)

// Notifier delivers forgot-password notifications. notify.Channel satisfies it.
type Notifier interface {
	SendForgotPassword(ctx context.Context, req notify.Request) bool
}

// TokenCodec issues and decodes tokens. *token.Codec satisfies it.
type TokenCodec interface {
	TokenIssuer
	Decode(raw string) (token.Claims, error)
}

// ForgotPasswordConfig holds the collaborators for ForgotPasswordService.
type ForgotPasswordConfig struct {
	Users    UserDirectory
	Resets   ResetRepository
	Hasher   PasswordHasher
	Tokens   TokenCodec
	Notifier Notifier

	ResetTTL        time.Duration
	DispatchTimeout time.Duration
	// MaxInFlight bounds concurrent background dispatches. Requests arriving
	// while the bound is reached are dropped and logged.
	MaxInFlight int
	Logger      *slog.Logger
	Now         func() time.Time
}

// ForgotPasswordService issues single-use reset tokens and confirms resets.
type ForgotPasswordService struct {
	users    UserDirectory
	resets   ResetRepository
	hasher   PasswordHasher
	tokens   TokenCodec
	notifier Notifier

	resetTTL        time.Duration
	dispatchTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewForgotPasswordService creates a new ForgotPasswordService.
func NewForgotPasswordService(cfg ForgotPasswordConfig) (*ForgotPasswordService, error) {
	switch {
	case cfg.Users == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("user directory is required")
	case cfg.Resets == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("reset repository is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("password hasher is required")
	case cfg.Tokens == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("token codec is required")
	case cfg.Notifier == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("notifier is required")
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ForgotPasswordService{
		users:           cfg.Users,
		resets:          cfg.Resets,
		hasher:          cfg.Hasher,
		tokens:          cfg.Tokens,
		notifier:        cfg.Notifier,
		resetTTL:        cfg.ResetTTL,
		dispatchTimeout: cfg.DispatchTimeout,
		logger:          cfg.Logger,
		now:             cfg.Now,
		slots:           make(chan struct{}, cfg.MaxInFlight),
	}, nil
}

// RequestReset starts a password reset for email. It has no observable
// outcome: the user lookup, token issuance and notification all run on a
// background goroutine detached from ctx's cancellation and bounded by the
// dispatch timeout, so callers cannot tell known from unknown addresses.
func (s *ForgotPasswordService) RequestReset(ctx context.Context, email string) {
	email = NormalizeEmail(email)
	if email == "" {
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		s.logger.WarnContext(ctx, "reset dispatch dropped, too many in flight")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
		defer cancel()

		if err := s.dispatch(dctx, email); err != nil {
			errutil.LogErrorContext(dctx, s.logger, "password reset dispatch failed", err)
		}
	}()
}

// Wait blocks until every in-flight reset dispatch has finished.
func (s *ForgotPasswordService) Wait() {
	s.wg.Wait()
}

func (s *ForgotPasswordService) dispatch(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	jti := ulid.Make().String()
	raw, claims, err := s.tokens.Issue(token.Claims{
		Subject:   user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Purpose:   token.PurposeReset,
		ID:        jti,
	}, s.resetTTL)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	reset, err := NewPasswordReset(user.ID, HashResetID(jti), claims.IssuedAt, claims.ExpiresAt)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "build reset").
			Wrap(err)
	}

	// A new request replaces any earlier outstanding reset.
	if err := s.resets.DeleteByUser(ctx, user.ID); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "delete previous resets").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create reset").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	sent := s.notifier.SendForgotPassword(ctx, notify.Request{
		Email:      user.Email,
		Phone:      user.Phone,
		ResetToken: raw,
		Metadata: map[string]string{
			"first_name": user.FirstName,
			"expires_at": claims.ExpiresAt.Format(time.RFC3339),
		},
	})
	s.logger.InfoContext(ctx, "password reset dispatched",
		"user_id", user.ID.String(),
		"delivered", sent)
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed: a second call with the same token fails with RESET_TOKEN_INVALID.
func (s *ForgotPasswordService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if newPassword == "" {
		return oops.Code(CodeResetPasswordEmpty).Errorf("new password cannot be empty")
	}

	claims, err := s.tokens.Decode(rawToken)
	if err != nil {
		if kind, _ := token.KindOf(err); kind == token.KindExpired {
			return oops.Code(CodeResetTokenExpired).Errorf("reset token has expired")
		}
		return errResetTokenInvalid()
	}
	if claims.Purpose != token.PurposeReset || claims.ID == "" {
		return errResetTokenInvalid()
	}
	userID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return errResetTokenInvalid()
	}

	reset, err := s.resets.GetByTokenHash(ctx, HashResetID(claims.ID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errResetTokenInvalid()
		}
		return oops.Code(CodeResetPasswordFailed).
			With("operation", "get reset by token hash").
			Wrap(err)
	}
	if reset.UserID != userID {
		return errResetTokenInvalid()
	}
	if reset.IsExpiredAt(s.now()) {
		return oops.Code(CodeResetTokenExpired).Errorf("reset token has expired")
	}

	// Consume before writing the password so concurrent uses cannot both win.
	if err := s.resets.Delete(ctx, reset.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errResetTokenInvalid()
		}
		return oops.Code(CodeResetPasswordFailed).
			With("operation", "consume reset").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeResetPasswordFailed).
			With("operation", "hash password").
			Wrap(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errResetTokenInvalid()
		}
		return oops.Code(CodeResetPasswordFailed).
			With("operation", "update password").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := s.resets.DeleteByUser(ctx, userID); err != nil {
		// Password is already updated; a leftover reset expires on its own.
		errutil.LogErrorContext(ctx, s.logger, "failed to clear outstanding resets", err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", userID.String())
	return nil
}

// PurgeExpired deletes expired resets and returns how many were removed.
func (s *ForgotPasswordService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

func errResetTokenInvalid() error {
	return oops.Code(CodeResetTokenInvalid).Errorf("reset token is invalid")
}
