// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the authentication services over HTTP.
//
// Routes:
//
//	POST /login            exchange credentials for a bearer token
//	POST /register         create an account and return a token
//	POST /forgot-password  request a reset link (always 200)
//	POST /reset-password   set a new password with a reset token
//	GET  /me               the authenticated identity
//	POST /logout           acknowledge logout
//	GET  /health           liveness
//
// The chain is request logging, then the request authenticator, then the
// route mux. Only /me and /logout sit outside the default exemptions.
package web
