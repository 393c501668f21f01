// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/warden/internal/token"
	"github.com/holomush/warden/pkg/errutil"
)

// Default token lifetimes.
const (
	DefaultAccessTTL   = 30 * time.Minute
	DefaultRememberTTL = 30 * 24 * time.Hour
)

// TokenType is the token_type reported alongside every issued token.
const TokenType = "bearer"

// TokenIssuer signs claims. *token.Codec satisfies it.
type TokenIssuer interface {
	Issue(claims token.Claims, ttl time.Duration) (string, token.Claims, error)
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	User      PublicUser
}

// ServiceConfig holds the collaborators for Service.
type ServiceConfig struct {
	Users       UserDirectory
	Hasher      PasswordHasher
	Tokens      TokenIssuer
	AccessTTL   time.Duration
	RememberTTL time.Duration
	Logger      *slog.Logger
	// Now overrides the clock used for registration timestamps.
	Now func() time.Time
}

// Service provides login, registration and logout.
type Service struct {
	users       UserDirectory
	hasher      PasswordHasher
	tokens      TokenIssuer
	accessTTL   time.Duration
	rememberTTL time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService creates a new Service.
func NewAuthService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user directory is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token issuer is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = DefaultRememberTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		users:       cfg.Users,
		hasher:      cfg.Hasher,
		tokens:      cfg.Tokens,
		accessTTL:   cfg.AccessTTL,
		rememberTTL: cfg.RememberTTL,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}, nil
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid credentials")
}

// Login authenticates a user by email and password and issues an access token.
// An unknown identifier and a wrong password produce the same error, and a dummy
// hash is verified for unknown identifiers so both paths do the same work.
// Login never writes to the directory.
func (s *Service) Login(ctx context.Context, identifier, password string, rememberMe bool) (*Session, error) {
	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(identifier))

	var targetHash string
	var userExists bool
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code(CodeLoginFailed).
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = dummyHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify so the unknown-user path costs the same as a mismatch.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if userExists {
			// The caller sees the same answer as for an unknown account.
			errutil.LogErrorContext(ctx, s.logger, "stored password hash unusable",
				oops.Code(CodeLoginFailed).
					With("operation", "verify password").
					With("user_id", user.ID.String()).
					Wrap(verifyErr))
		}
		return nil, errInvalidCredentials()
	}
	if !userExists || !valid {
		return nil, errInvalidCredentials()
	}

	ttl := s.accessTTL
	if rememberMe {
		ttl = s.rememberTTL
	}
	session, err := s.issue(user, ttl)
	if err != nil {
		return nil, oops.Code(CodeLoginFailed).
			With("operation", "issue token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		"user_id", user.ID.String(),
		"remember_me", rememberMe)
	return session, nil
}

// Register creates a new account and issues an access token identical in shape
// to Login's. The duplicate check runs before any write; on success exactly one
// Create is performed.
func (s *Service) Register(ctx context.Context, reg Registration) (*Session, error) {
	now := s.now()
	if err := reg.Validate(now); err != nil {
		return nil, err
	}

	_, err := s.users.GetByEmail(ctx, reg.Email)
	switch {
	case err == nil:
		return nil, errDuplicateAccount()
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code(CodeRegisterFailed).
			With("operation", "check existing user").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, oops.Code(CodeRegisterFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(reg, hash, now)
	if err != nil {
		return nil, oops.Code(CodeRegisterFailed).
			With("operation", "build user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent registration for the same email.
			return nil, errDuplicateAccount()
		}
		return nil, oops.Code(CodeRegisterFailed).
			With("operation", "create user").
			Wrap(err)
	}

	session, err := s.issue(user, s.accessTTL)
	if err != nil {
		return nil, oops.Code(CodeRegisterFailed).
			With("operation", "issue token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return session, nil
}

func errDuplicateAccount() error {
	return oops.Code(CodeDuplicateAccount).Errorf("an account with this email already exists")
}

// Logout acknowledges a logout. Tokens are stateless, so nothing is revoked;
// the client is expected to discard its token.
func (s *Service) Logout(ctx context.Context, identity *Identity) error {
	if identity == nil {
		return oops.Code("AUTH_NOT_AUTHENTICATED").Errorf("no identity to log out")
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", identity.ID)
	return nil
}

func (s *Service) issue(user *User, ttl time.Duration) (*Session, error) {
	raw, claims, err := s.tokens.Issue(token.Claims{
		Subject:   user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Purpose:   token.PurposeAccess,
	}, ttl)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers with operation context
	}
	return &Session{
		Token:     raw,
		TokenType: TokenType,
		ExpiresAt: claims.ExpiresAt,
		User:      user.Public(),
	}, nil
}
