// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the authentication core for warden.
//
// # Collaborators
//
// The package consumes two capabilities it does not implement itself:
//   - UserDirectory - user lookup and the single user-creation write
//   - PasswordHasher - opaque Verify(plain, hash) and Hash(plain)
//
// Argon2idHasher is the bundled PasswordHasher. Directory adapters live in
// the memory and postgres subpackages.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, registration, logout
//   - ForgotPasswordService - reset requests and single-use reset confirmation
//
// Services are created with New*Service constructors that validate dependencies.
//
// # Anti-enumeration
//
// Login reports AUTH_INVALID_CREDENTIALS for both an unknown identifier and a
// wrong password, and verifies a dummy hash when the user does not exist so
// both paths do the same work. ForgotPasswordService.RequestReset has no
// observable outcome; the user lookup and everything after it run off the
// request path.
package auth
