// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/warden/internal/notify"
)

// fakeChannel counts calls and delegates to send.
type fakeChannel struct {
	name  string
	calls atomic.Int32
	send  func(ctx context.Context, req notify.Request) bool
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) SendForgotPassword(ctx context.Context, req notify.Request) bool {
	c.calls.Add(1)
	return c.send(ctx, req)
}

func fixed(name string, ok bool) *fakeChannel {
	return &fakeChannel{name: name, send: func(context.Context, notify.Request) bool { return ok }}
}

func blocking(name string) *fakeChannel {
	return &fakeChannel{name: name, send: func(ctx context.Context, _ notify.Request) bool {
		<-ctx.Done()
		return true
	}}
}

func panicking(name string) *fakeChannel {
	return &fakeChannel{name: name, send: func(context.Context, notify.Request) bool {
		panic("boom")
	}}
}

func asChannels(fakes ...*fakeChannel) []notify.Channel {
	out := make([]notify.Channel, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

func TestMultiChannel_LogicalOr(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name  string
		fakes []*fakeChannel
		want  bool
	}{
		{name: "one fails one succeeds", fakes: []*fakeChannel{fixed("a", false), fixed("b", true)}, want: true},
		{name: "first succeeds rest fail", fakes: []*fakeChannel{fixed("a", true), fixed("b", false), fixed("c", false)}, want: true},
		{name: "all fail", fakes: []*fakeChannel{fixed("a", false), fixed("b", false)}, want: false},
		{name: "all succeed", fakes: []*fakeChannel{fixed("a", true), fixed("b", true)}, want: true},
		{name: "no channels", fakes: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := notify.NewMultiChannel(asChannels(tt.fakes...))
			assert.Equal(t, tt.want, m.SendForgotPassword(context.Background(), notify.Request{Email: "a@example.com"}))
			for _, f := range tt.fakes {
				assert.Equal(t, int32(1), f.calls.Load(), "channel %s", f.name)
			}
		})
	}
}

func TestMultiChannel_PassesRequestByValue(t *testing.T) {
	defer goleak.VerifyNone(t)

	var seen [2]notify.Request
	mutator := &fakeChannel{name: "mutator", send: func(_ context.Context, req notify.Request) bool {
		req.Email = "changed@example.com"
		seen[0] = req
		return true
	}}
	observer := &fakeChannel{name: "observer", send: func(_ context.Context, req notify.Request) bool {
		seen[1] = req
		return true
	}}

	m := notify.NewMultiChannel(asChannels(mutator, observer))
	require.True(t, m.SendForgotPassword(context.Background(), notify.Request{Email: "a@example.com", ResetToken: "t"}))
	assert.Equal(t, "a@example.com", seen[1].Email)
	assert.Equal(t, "t", seen[1].ResetToken)
}

func TestMultiChannel_TimeoutCountsAsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := blocking("slow")
	fast := fixed("fast", false)
	m := notify.NewMultiChannel(asChannels(slow, fast), notify.WithChannelTimeout(50*time.Millisecond))

	start := time.Now()
	assert.False(t, m.SendForgotPassword(context.Background(), notify.Request{}))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(1), slow.calls.Load())
	assert.Equal(t, int32(1), fast.calls.Load())
}

func TestMultiChannel_TrueAfterDeadlineIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	// blocking returns true only once its context is done.
	for range 50 {
		m := notify.NewMultiChannel(asChannels(blocking("slow")), notify.WithChannelTimeout(5*time.Millisecond))
		require.False(t, m.SendForgotPassword(context.Background(), notify.Request{}))
	}
}

func TestMultiChannel_ChannelIgnoringContextIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	done := make(chan struct{})
	stubborn := &fakeChannel{name: "stubborn", send: func(context.Context, notify.Request) bool {
		defer close(done)
		<-release
		return true
	}}
	reg := prometheus.NewRegistry()
	metrics := notify.NewMetrics(reg)
	m := notify.NewMultiChannel(asChannels(stubborn),
		notify.WithChannelTimeout(10*time.Millisecond),
		notify.WithMetrics(metrics))

	assert.False(t, m.SendForgotPassword(context.Background(), notify.Request{}))

	close(release)
	<-done
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Total.WithLabelValues("stubborn", notify.ResultFailed)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMultiChannel_SlowChannelDoesNotMaskSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := notify.NewMultiChannel(asChannels(blocking("slow"), fixed("ok", true)),
		notify.WithChannelTimeout(50*time.Millisecond))
	assert.True(t, m.SendForgotPassword(context.Background(), notify.Request{}))
}

func TestMultiChannel_PanicCountsAsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	bad := panicking("bad")
	good := fixed("good", true)

	m := notify.NewMultiChannel(asChannels(bad, good))
	assert.True(t, m.SendForgotPassword(context.Background(), notify.Request{}))
	assert.Equal(t, int32(1), bad.calls.Load())

	m = notify.NewMultiChannel(asChannels(panicking("only")))
	assert.False(t, m.SendForgotPassword(context.Background(), notify.Request{}))
}

func TestMultiChannel_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slow := &fakeChannel{name: "slow", send: func(ctx context.Context, _ notify.Request) bool {
		<-ctx.Done()
		return false
	}}
	m := notify.NewMultiChannel(asChannels(slow), notify.WithChannelTimeout(time.Minute))
	assert.False(t, m.SendForgotPassword(ctx, notify.Request{}))
}

func TestMultiChannel_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := notify.NewMetrics(reg)

	m := notify.NewMultiChannel(asChannels(fixed("email", true), fixed("sms", false)), notify.WithMetrics(metrics))
	m.SendForgotPassword(context.Background(), notify.Request{})
	m.SendForgotPassword(context.Background(), notify.Request{})

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Total.WithLabelValues("email", notify.ResultSent)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Total.WithLabelValues("sms", notify.ResultFailed)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Total.WithLabelValues("email", notify.ResultFailed)))
}

func TestMultiChannel_Channels(t *testing.T) {
	m := notify.NewMultiChannel(asChannels(fixed("email", true), fixed("sms", true)))
	assert.Equal(t, []string{"email", "sms"}, m.Channels())
	assert.Equal(t, "multi", m.Name())
}
