// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package middleware authenticates inbound HTTP requests by bearer token.
//
// Each request moves through PathCheck, HeaderExtract, Decode and Attach and
// ends Allowed or Rejected. Every rejection produces the same 401 response;
// the precise reason is only logged and counted.
package middleware
