// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Name validation constraints.
const (
	MaxNameLength  = 100
	MaxEmailLength = 254
)

// DefaultRole is assigned to newly registered users.
const DefaultRole = "user"

// User is a stored account record.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	Phone        string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public returns the view of u that is safe to hand to callers.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// PublicUser is the externally visible subset of a User.
type PublicUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Registration is the input to Service.Register.
type Registration struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Phone       string
}

// NormalizeEmail lowercases and trims an email address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare, well-formed address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidRegistration).With("field", "email").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidRegistration).
			With("field", "email").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return oops.Code(CodeInvalidRegistration).With("field", "email").Errorf("email is not a valid address")
	}
	return nil
}

// Validate normalizes r in place and checks every field.
func (r *Registration) Validate(now time.Time) error {
	r.Email = NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)

	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return oops.Code(CodeInvalidRegistration).With("field", "password").Errorf("password cannot be empty")
	}
	for field, value := range map[string]string{"first_name": r.FirstName, "last_name": r.LastName} {
		if value == "" {
			return oops.Code(CodeInvalidRegistration).With("field", field).Errorf("%s cannot be empty", field)
		}
		if len(value) > MaxNameLength {
			return oops.Code(CodeInvalidRegistration).
				With("field", field).
				With("max", MaxNameLength).
				Errorf("%s must be at most %d characters", field, MaxNameLength)
		}
	}
	if r.DateOfBirth.IsZero() {
		return oops.Code(CodeInvalidRegistration).With("field", "date_of_birth").Errorf("date of birth is required")
	}
	if r.DateOfBirth.After(now) {
		return oops.Code(CodeInvalidRegistration).With("field", "date_of_birth").Errorf("date of birth cannot be in the future")
	}
	return nil
}

// NewUser creates a User from a validated registration and password hash.
func NewUser(r Registration, passwordHash string, now time.Time) (*User, error) {
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if r.Email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	return &User{
		ID:           ulid.Make(),
		Email:        r.Email,
		PasswordHash: passwordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		DateOfBirth:  r.DateOfBirth,
		Phone:        r.Phone,
		Role:         DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UserDirectory looks up and stores users. Implementations own any locking.
type UserDirectory interface {
	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// Create stores a new user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *User) error

	// UpdatePassword replaces the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
