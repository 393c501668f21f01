// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"net/url"

	"github.com/samber/oops"
)

// Request is a single forgot-password notification. It is passed by value
// to every channel and never persisted.
type Request struct {
	Email      string
	Phone      string
	ResetToken string
	Metadata   map[string]string
}

// Channel delivers notifications over one mechanism.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// SendForgotPassword reports whether the notification was handed off
	// successfully. It must honor ctx and must not panic on delivery failure.
	SendForgotPassword(ctx context.Context, req Request) bool
}

// ResetLink renders the reset link for token by setting the token query
// parameter on base.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", oops.Code("NOTIFY_RESET_URL_INVALID").With("reset_url", base).Wrap(err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
