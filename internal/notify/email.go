// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/wneessen/go-mail"

	"github.com/holomush/warden/pkg/errutil"
)

// DefaultEmailSubject is used when EmailConfig.Subject is empty.
const DefaultEmailSubject = "Password Reset Request"

// EmailConfig configures EmailChannel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
	// TLS is one of "mandatory", "opportunistic" or "none".
	TLS      string
	ResetURL string
	Timeout  time.Duration
}

// mailSender is the part of *mail.Client EmailChannel uses.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailChannel sends reset links over SMTP.
type EmailChannel struct {
	cfg    EmailConfig
	sender mailSender
	logger *slog.Logger
}

// NewEmailChannel validates cfg and builds an SMTP client for it.
func NewEmailChannel(cfg EmailConfig, logger *slog.Logger) (*EmailChannel, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_EMAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_EMAIL_CONFIG_INVALID").Errorf("from address is required")
	}
	if cfg.ResetURL == "" {
		return nil, oops.Code("NOTIFY_EMAIL_CONFIG_INVALID").Errorf("reset url is required")
	}
	if _, err := ResetLink(cfg.ResetURL, ""); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultEmailSubject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	policy, err := tlsPolicy(cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(policy),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("NOTIFY_EMAIL_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return newEmailChannel(cfg, client, logger), nil
}

func newEmailChannel(cfg EmailConfig, sender mailSender, logger *slog.Logger) *EmailChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultEmailSubject
	}
	return &EmailChannel{cfg: cfg, sender: sender, logger: logger}
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch strings.ToLower(name) {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, oops.Code("NOTIFY_EMAIL_CONFIG_INVALID").
			With("tls", name).
			Errorf("unknown smtp tls policy %q", name)
	}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// SendForgotPassword implements Channel.
func (c *EmailChannel) SendForgotPassword(ctx context.Context, req Request) bool {
	msg, err := c.message(req)
	if err != nil {
		errutil.LogErrorContext(ctx, c.logger, "failed to build reset email", err)
		return false
	}
	if err := c.sender.DialAndSendWithContext(ctx, msg); err != nil {
		errutil.LogErrorContext(ctx, c.logger, "failed to send reset email",
			oops.Code("NOTIFY_EMAIL_SEND_FAILED").With("host", c.cfg.Host).Wrap(err))
		return false
	}
	c.logger.DebugContext(ctx, "reset email sent")
	return true
}

func (c *EmailChannel) message(req Request) (*mail.Msg, error) {
	if req.Email == "" {
		return nil, oops.Code("NOTIFY_EMAIL_NO_RECIPIENT").Errorf("request has no email address")
	}
	link, err := ResetLink(c.cfg.ResetURL, req.ResetToken)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(c.cfg.From); err != nil {
		return nil, oops.Code("NOTIFY_EMAIL_BUILD_FAILED").With("field", "from").Wrap(err)
	}
	if err := msg.To(req.Email); err != nil {
		return nil, oops.Code("NOTIFY_EMAIL_BUILD_FAILED").With("field", "to").Wrap(err)
	}
	msg.Subject(c.cfg.Subject)
	msg.SetBodyString(mail.TypeTextPlain, emailBody(req, link))
	return msg, nil
}

func emailBody(req Request, link string) string {
	greeting := "Hello,"
	if name := req.Metadata["first_name"]; name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}
	var b strings.Builder
	b.WriteString(greeting + "\n\n")
	b.WriteString("We received a request to reset your password. Use the link below to choose a new one:\n\n")
	b.WriteString(link + "\n\n")
	if exp := req.Metadata["expires_at"]; exp != "" {
		b.WriteString("The link expires at " + exp + " and can be used once.\n\n")
	}
	b.WriteString("If you did not request a reset, you can ignore this message.\n")
	return b.String()
}
