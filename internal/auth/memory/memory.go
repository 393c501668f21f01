// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth
// collaborators for development and tests. Records are copied on the way
// in and out so callers never share state with the store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// UserDirectory is an auth.UserDirectory backed by maps.
type UserDirectory struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
}

// NewUserDirectory creates an empty UserDirectory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a copy of user. A taken email yields auth.ErrDuplicate.
func (d *UserDirectory) Create(ctx context.Context, user *auth.User) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through
	}
	if user == nil {
		return oops.Code("USER_CREATE_FAILED").Errorf("user cannot be nil")
	}
	key := auth.NormalizeEmail(user.Email)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byEmail[key]; taken {
		return oops.Code("USER_DUPLICATE").With("email", key).Wrap(auth.ErrDuplicate)
	}
	if _, taken := d.byID[user.ID]; taken {
		return oops.Code("USER_DUPLICATE").With("id", user.ID.String()).Wrap(auth.ErrDuplicate)
	}
	stored := *user
	d.byID[user.ID] = &stored
	d.byEmail[key] = user.ID
	return nil
}

// GetByID retrieves a copy of the user with id.
func (d *UserDirectory) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	found := *user
	return &found, nil
}

// GetByEmail retrieves a copy of the user with email (case-insensitive).
func (d *UserDirectory) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	key := auth.NormalizeEmail(email)

	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[key]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", key).Wrap(auth.ErrNotFound)
	}
	found := *d.byID[id]
	return &found, nil
}

// UpdatePassword replaces the stored hash for id.
func (d *UserDirectory) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Len reports how many users are stored.
func (d *UserDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

// ResetRepository is an auth.ResetRepository backed by a map.
type ResetRepository struct {
	mu     sync.Mutex
	resets map[ulid.ULID]*auth.PasswordReset
}

// NewResetRepository creates an empty ResetRepository.
func NewResetRepository() *ResetRepository {
	return &ResetRepository{resets: make(map[ulid.ULID]*auth.PasswordReset)}
}

// Create stores a copy of reset.
func (r *ResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through
	}
	if reset == nil {
		return oops.Code("RESET_CREATE_FAILED").Errorf("reset cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.resets {
		if existing.TokenHash == reset.TokenHash {
			return oops.Code("RESET_CREATE_FAILED").Errorf("token hash already recorded")
		}
	}
	stored := *reset
	r.resets[reset.ID] = &stored
	return nil
}

// GetByTokenHash retrieves a copy of the reset with tokenHash.
func (r *ResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reset := range r.resets {
		if reset.TokenHash == tokenHash {
			found := *reset
			return &found, nil
		}
	}
	return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Delete removes the reset with id, reporting auth.ErrNotFound when it is gone.
func (r *ResetRepository) Delete(ctx context.Context, id ulid.ULID) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.resets[id]; !ok {
		return oops.Code("RESET_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.resets, id)
	return nil
}

// DeleteByUser removes every reset for userID.
func (r *ResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, reset := range r.resets {
		if reset.UserID == userID {
			delete(r.resets, id)
		}
	}
	return nil
}

// DeleteExpired removes resets expired at now and returns how many.
func (r *ResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // context errors pass through
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, reset := range r.resets {
		if reset.IsExpiredAt(now) {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many resets are outstanding.
func (r *ResetRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resets)
}

// Compile-time interface checks.
var (
	_ auth.UserDirectory   = (*UserDirectory)(nil)
	_ auth.ResetRepository = (*ResetRepository)(nil)
)
