// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by UserDirectory.Create when the email is taken.
var ErrDuplicate = errors.New("duplicate")

// Error codes surfaced by this package.
const (
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeDuplicateAccount    = "AUTH_DUPLICATE_ACCOUNT"
	CodeInvalidRegistration = "AUTH_INVALID_REGISTRATION"
	CodeLoginFailed         = "AUTH_LOGIN_FAILED"
	CodeRegisterFailed      = "AUTH_REGISTER_FAILED"

	CodeResetTokenInvalid   = "RESET_TOKEN_INVALID"
	CodeResetTokenExpired   = "RESET_TOKEN_EXPIRED"
	CodeResetPasswordEmpty  = "RESET_PASSWORD_EMPTY"
	CodeResetPasswordFailed = "RESET_PASSWORD_FAILED"
)
