// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/notify"
	"github.com/holomush/warden/pkg/errutil"
)

func smsConfig(baseURL string) notify.SMSConfig {
	return notify.SMSConfig{
		BaseURL:    baseURL,
		AccountSID: "AC123",
		AuthToken:  "secret-token",
		From:       "+15550000",
		ResetURL:   "https://app.example.com/reset-password",
		Timeout:    2 * time.Second,
		Retries:    2,
		Backoff:    time.Millisecond,
	}
}

func TestNewSMSChannel_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*notify.SMSConfig)
	}{
		{name: "account sid", mutate: func(c *notify.SMSConfig) { c.AccountSID = "" }},
		{name: "auth token", mutate: func(c *notify.SMSConfig) { c.AuthToken = "" }},
		{name: "sender", mutate: func(c *notify.SMSConfig) { c.From = "" }},
		{name: "reset url", mutate: func(c *notify.SMSConfig) { c.ResetURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smsConfig("http://localhost")
			tt.mutate(&cfg)
			ch, err := notify.NewSMSChannel(cfg, nil, nil)
			assert.Nil(t, ch)
			errutil.AssertErrorCode(t, err, "NOTIFY_SMS_CONFIG_INVALID")
		})
	}
}

func TestSMSChannel_Sends(t *testing.T) {
	var got struct {
		path, user, pass, to, from, body string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.user, got.pass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		got.to = r.PostForm.Get("To")
		got.from = r.PostForm.Get("From")
		got.body = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch, err := notify.NewSMSChannel(smsConfig(srv.URL), srv.Client(), nil)
	require.NoError(t, err)
	assert.Equal(t, "sms", ch.Name())

	ok := ch.SendForgotPassword(context.Background(), notify.Request{
		Email:      "ada@example.com",
		Phone:      "+15550100",
		ResetToken: "tok123",
	})
	require.True(t, ok)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", got.path)
	assert.Equal(t, "AC123", got.user)
	assert.Equal(t, "secret-token", got.pass)
	assert.Equal(t, "+15550100", got.to)
	assert.Equal(t, "+15550000", got.from)
	assert.Contains(t, got.body, "https://app.example.com/reset-password?token=tok123")
}

func TestSMSChannel_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch, err := notify.NewSMSChannel(smsConfig(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	assert.True(t, ch.SendForgotPassword(context.Background(), notify.Request{Phone: "+15550100", ResetToken: "t"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSMSChannel_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch, err := notify.NewSMSChannel(smsConfig(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	assert.False(t, ch.SendForgotPassword(context.Background(), notify.Request{Phone: "+15550100", ResetToken: "t"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSMSChannel_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ch, err := notify.NewSMSChannel(smsConfig(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	assert.False(t, ch.SendForgotPassword(context.Background(), notify.Request{Phone: "+15550100", ResetToken: "t"}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSMSChannel_MissingPhone(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ch, err := notify.NewSMSChannel(smsConfig(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	assert.False(t, ch.SendForgotPassword(context.Background(), notify.Request{Email: "ada@example.com"}))
	assert.Equal(t, int32(0), calls.Load())
}

func TestSMSChannel_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := smsConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	ch, err := notify.NewSMSChannel(cfg, srv.Client(), nil)
	require.NoError(t, err)

	start := time.Now()
	assert.False(t, ch.SendForgotPassword(context.Background(), notify.Request{Phone: "+15550100", ResetToken: "t"}))
	assert.Less(t, time.Since(start), 2*time.Second)
}
