// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package token encodes and decodes signed, expiring identity claims.
//
// Tokens are compact HMAC-signed JWTs. A Codec is immutable after construction
// and safe for concurrent use; Issue and Decode never perform I/O.
//
// Decode failures are reported as *DecodeError with one of three kinds:
//   - KindMalformed - the input is not a structurally valid token
//   - KindSignatureInvalid - tampered, wrong secret, or wrong algorithm
//   - KindExpired - the signature verifies but the current time is at or past exp
//
// Signature verification happens before expiry is considered, so a token signed
// with another secret is always KindSignatureInvalid, never KindExpired.
package token
