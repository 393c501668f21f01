// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/warden/pkg/errutil"
)

// SMS defaults.
const (
	DefaultSMSBaseURL = "https://api.twilio.com"
	DefaultSMSRetries = 2
	defaultSMSBackoff = 200 * time.Millisecond
)

// SMSConfig configures SMSChannel against a Twilio-compatible messages API.
type SMSConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	ResetURL   string
	Timeout    time.Duration
	// Retries is the number of additional attempts after a retryable failure.
	Retries int
	// Backoff is the initial retry delay; it doubles on each attempt.
	Backoff time.Duration
}

// SMSChannel sends reset links as text messages.
type SMSChannel struct {
	cfg      SMSConfig
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// NewSMSChannel validates cfg and creates an SMSChannel. client may be nil.
func NewSMSChannel(cfg SMSConfig, client *http.Client, logger *slog.Logger) (*SMSChannel, error) {
	switch {
	case cfg.AccountSID == "":
		return nil, oops.Code("NOTIFY_SMS_CONFIG_INVALID").Errorf("account sid is required")
	case cfg.AuthToken == "":
		return nil, oops.Code("NOTIFY_SMS_CONFIG_INVALID").Errorf("auth token is required")
	case cfg.From == "":
		return nil, oops.Code("NOTIFY_SMS_CONFIG_INVALID").Errorf("sender number is required")
	case cfg.ResetURL == "":
		return nil, oops.Code("NOTIFY_SMS_CONFIG_INVALID").Errorf("reset url is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSMSBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultSMSBackoff
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	endpoint, err := url.JoinPath(cfg.BaseURL, "2010-04-01", "Accounts", cfg.AccountSID, "Messages.json")
	if err != nil {
		return nil, oops.Code("NOTIFY_SMS_CONFIG_INVALID").With("base_url", cfg.BaseURL).Wrap(err)
	}
	return &SMSChannel{cfg: cfg, client: client, endpoint: endpoint, logger: logger}, nil
}

// Name implements Channel.
func (c *SMSChannel) Name() string { return "sms" }

// SendForgotPassword implements Channel. A request without a phone number
// is reported as not delivered.
func (c *SMSChannel) SendForgotPassword(ctx context.Context, req Request) bool {
	if req.Phone == "" {
		c.logger.DebugContext(ctx, "sms skipped, no phone number")
		return false
	}
	link, err := ResetLink(c.cfg.ResetURL, req.ResetToken)
	if err != nil {
		errutil.LogErrorContext(ctx, c.logger, "failed to build reset sms", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("To", req.Phone)
	form.Set("From", c.cfg.From)
	form.Set("Body", "Reset your password: "+link)
	body := form.Encode()

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.cfg.Retries), retry.NewExponential(c.cfg.Backoff)) //nolint:gosec // non-negative
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		return c.post(ctx, body)
	})
	if err != nil {
		errutil.LogErrorContext(ctx, c.logger, "failed to send reset sms",
			oops.Code("NOTIFY_SMS_SEND_FAILED").With("attempts", attempt).Wrap(err))
		return false
	}
	c.logger.DebugContext(ctx, "reset sms sent", "attempts", attempt)
	return true
}

// post sends one message. Transport errors, 429 and 5xx responses are retryable.
func (c *SMSChannel) post(ctx context.Context, body string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return oops.Code("NOTIFY_SMS_REQUEST_INVALID").Wrap(err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("sms provider returned %d", resp.StatusCode))
	default:
		return oops.Code("NOTIFY_SMS_REJECTED").
			With("status", resp.StatusCode).
			Errorf("sms provider rejected message with status %d", resp.StatusCode)
	}
}
