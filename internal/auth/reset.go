// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTTL is the lifetime of a password reset token.
const DefaultResetTTL = 15 * time.Minute

// PasswordReset is a ledger entry for one outstanding reset token.
// Only the hash of the token's jti is stored.
type PasswordReset struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewPasswordReset creates a ledger entry for a reset token.
func NewPasswordReset(userID ulid.ULID, tokenHash string, createdAt, expiresAt time.Time) (*PasswordReset, error) {
	if userID.IsZero() {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user id cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("RESET_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("reset must expire after it is created")
	}
	return &PasswordReset{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsExpiredAt reports whether the reset has expired at t.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// HashResetID returns the ledger key for a reset token's jti.
func HashResetID(jti string) string {
	h := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(h[:])
}

// ResetRepository stores outstanding password resets.
type ResetRepository interface {
	// Create stores a new password reset.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByTokenHash retrieves a reset by its token hash.
	// Returns ErrNotFound when no reset has the hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// Delete removes a reset. Returns ErrNotFound when it was already removed,
	// which makes Delete the single-use gate for a reset token.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all resets for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes resets that expired before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
