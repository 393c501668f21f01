// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the shortest signing secret NewCodec accepts.
const MinSecretLength = 32

// Token purposes.
const (
	PurposeAccess = "access"
	PurposeReset  = "reset"
)

// Claims are the identity facts embedded in a token.
type Claims struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Purpose separates access tokens from reset tokens. Empty means PurposeAccess.
	Purpose string
	// ID is the jti claim. Reset tokens carry one; access tokens may omit it.
	ID string
}

// wireClaims is the JSON payload of a signed token.
type wireClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
}

var signingMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIssuer sets the iss claim on issued tokens and requires it on decode.
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// Codec signs and verifies tokens with a single secret and algorithm.
type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	issuer string
	now    func() time.Time
}

// NewCodec builds a Codec. It fails when the secret is shorter than
// MinSecretLength or the algorithm is not one of HS256, HS384, HS512.
func NewCodec(secret, algorithm string, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_SECRET_INVALID").
			With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	method, ok := signingMethods[strings.ToUpper(algorithm)]
	if !ok {
		return nil, oops.Code("TOKEN_ALGORITHM_UNSUPPORTED").
			With("algorithm", algorithm).
			Errorf("unsupported signing algorithm %q", algorithm)
	}

	c := &Codec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Algorithm returns the configured algorithm tag.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs claims with issued-at = now and expires-at = now+ttl.
// JWT timestamps have second precision: issued-at is truncated and expires-at
// is rounded up, so a token never lives shorter than ttl. The returned Claims
// carry the timestamps exactly as encoded, so they compare equal to a later
// Decode of the returned token.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 {
		return "", Claims{}, oops.Code("TOKEN_TTL_INVALID").
			With("ttl", ttl.String()).
			Errorf("token ttl must be positive")
	}
	if claims.Subject == "" {
		return "", Claims{}, oops.Code("TOKEN_SUBJECT_REQUIRED").Errorf("token subject cannot be empty")
	}

	now := c.now().UTC()
	claims.IssuedAt = now.Truncate(time.Second)
	claims.ExpiresAt = ceilSecond(now.Add(ttl))
	if claims.Purpose == "" {
		claims.Purpose = PurposeAccess
	}

	wire := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    c.issuer,
			ID:        claims.ID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Purpose:   claims.Purpose,
	}

	signed, err := jwt.NewWithClaims(c.method, wire).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, oops.Code("TOKEN_SIGN_FAILED").
			With("algorithm", c.method.Alg()).
			Wrap(err)
	}
	return signed, claims, nil
}

// Decode verifies the signature and expiry of raw and returns its claims.
// Errors are always *DecodeError.
func (c *Codec) Decode(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, &DecodeError{Kind: KindMalformed, Err: errors.New("token is empty")}
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}

	var wire wireClaims
	_, err := jwt.ParseWithClaims(raw, &wire, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, parserOpts...)
	if err != nil {
		return Claims{}, classify(err)
	}
	if wire.Subject == "" {
		return Claims{}, &DecodeError{Kind: KindMalformed, Err: errors.New("token subject is missing")}
	}

	claims := Claims{
		Subject:   wire.Subject,
		Email:     wire.Email,
		FirstName: wire.FirstName,
		LastName:  wire.LastName,
		Purpose:   wire.Purpose,
		ID:        wire.ID,
		ExpiresAt: wire.ExpiresAt.UTC(),
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.UTC()
	}
	if claims.Purpose == "" {
		claims.Purpose = PurposeAccess
	}
	return claims, nil
}

func ceilSecond(t time.Time) time.Time {
	floor := t.Truncate(time.Second)
	if floor.Equal(t) {
		return floor
	}
	return floor.Add(time.Second)
}
