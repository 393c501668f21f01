// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogChannel writes notifications to a logger instead of delivering them.
// It is meant for local development and always succeeds.
type LogChannel struct {
	logger   *slog.Logger
	resetURL string
}

// NewLogChannel creates a LogChannel. resetURL may be empty.
func NewLogChannel(logger *slog.Logger, resetURL string) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger, resetURL: resetURL}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// SendForgotPassword implements Channel.
func (c *LogChannel) SendForgotPassword(ctx context.Context, req Request) bool {
	attrs := []any{"email", req.Email}
	if req.Phone != "" {
		attrs = append(attrs, "phone", req.Phone)
	}
	if c.resetURL != "" {
		if link, err := ResetLink(c.resetURL, req.ResetToken); err == nil {
			attrs = append(attrs, "reset_link", link)
		}
	}
	for k, v := range req.Metadata {
		attrs = append(attrs, "meta_"+k, v)
	}
	c.logger.InfoContext(ctx, "forgot-password notification", attrs...)
	return true
}
