// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Kind classifies why a token could not be decoded.
type Kind string

// Decode failure kinds.
const (
	KindMalformed        Kind = "malformed"
	KindSignatureInvalid Kind = "signature_invalid"
	KindExpired          Kind = "expired"
)

// DecodeError reports a failed Decode with a stable kind.
type DecodeError struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "token " + string(e.Kind)
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying library error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// KindOf returns the decode kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// classify maps golang-jwt errors onto decode kinds. The library verifies the
// signature before validating claims, so ErrTokenExpired only surfaces for
// correctly signed tokens.
func classify(err error) *DecodeError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims) && !errors.Is(err, jwt.ErrTokenExpired):
		return &DecodeError{Kind: KindMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &DecodeError{Kind: KindExpired, Err: err}
	default:
		return &DecodeError{Kind: KindSignatureInvalid, Err: err}
	}
}
