// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers forgot-password notifications over pluggable channels.
//
// Every Channel reports delivery as a bool and never returns an error or
// panics into the caller: failures are logged and reported as false.
// MultiChannel fans a Request out to several channels concurrently, gives
// each its own timeout, and succeeds when at least one channel does.
package notify
