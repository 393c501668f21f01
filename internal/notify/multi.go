// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"
)

// DefaultChannelTimeout bounds each channel call made by MultiChannel.
const DefaultChannelTimeout = 15 * time.Second

// MultiOption customizes a MultiChannel.
type MultiOption func(*MultiChannel)

// WithChannelTimeout sets the per-channel timeout.
func WithChannelTimeout(d time.Duration) MultiOption {
	return func(m *MultiChannel) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithMetrics records each channel's outcome.
func WithMetrics(metrics *Metrics) MultiOption {
	return func(m *MultiChannel) {
		m.metrics = metrics
	}
}

// WithLogger sets the logger used for channel failures.
func WithLogger(logger *slog.Logger) MultiOption {
	return func(m *MultiChannel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// MultiChannel fans a request out to an ordered list of channels.
type MultiChannel struct {
	channels []Channel
	timeout  time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

// NewMultiChannel creates a MultiChannel over channels.
func NewMultiChannel(channels []Channel, opts ...MultiOption) *MultiChannel {
	m := &MultiChannel{
		channels: append([]Channel(nil), channels...),
		timeout:  DefaultChannelTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Channel.
func (m *MultiChannel) Name() string { return "multi" }

// Channels returns the configured channel names in order.
func (m *MultiChannel) Channels() []string {
	names := make([]string, len(m.channels))
	for i, ch := range m.channels {
		names[i] = ch.Name()
	}
	return names
}

// SendForgotPassword invokes every channel exactly once, concurrently, and
// returns true when at least one succeeded. A channel that exceeds the
// timeout or panics counts as failed. It returns once every channel has
// reported or timed out.
func (m *MultiChannel) SendForgotPassword(ctx context.Context, req Request) bool {
	// One deadline for every channel and for the collector, so a result
	// buffered after the deadline can never be read as a success.
	deadline := time.Now().Add(m.timeout)

	results := make([]chan bool, len(m.channels))
	for i, ch := range m.channels {
		results[i] = make(chan bool, 1)
		r := req
		r.Metadata = maps.Clone(req.Metadata)
		go m.run(ctx, deadline, ch, r, results[i])
	}

	wait, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	sent := false
	for i, ch := range m.channels {
		var ok bool
		select {
		case ok = <-results[i]:
		case <-wait.Done():
			// run reports false for anything that finished past the
			// deadline, so a buffered value here was produced in time.
			select {
			case ok = <-results[i]:
			default:
				m.logger.WarnContext(ctx, "notification channel timed out", "channel", ch.Name())
			}
		}
		sent = sent || ok
	}
	return sent
}

func (m *MultiChannel) run(ctx context.Context, deadline time.Time, ch Channel, req Request, out chan<- bool) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	ok := false
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "notification channel panicked",
				"channel", ch.Name(),
				"panic", fmt.Sprint(r))
			ok = false
		}
		m.metrics.observe(ch.Name(), ok, time.Since(start))
		out <- ok
	}()

	ok = ch.SendForgotPassword(ctx, req)
	if ctx.Err() != nil || !time.Now().Before(deadline) {
		if ok {
			m.logger.WarnContext(ctx, "notification channel finished after its deadline", "channel", ch.Name())
		}
		ok = false
		return
	}
	if !ok {
		m.logger.WarnContext(ctx, "notification channel failed", "channel", ch.Name())
	}
}
