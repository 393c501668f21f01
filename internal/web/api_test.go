// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	"github.com/holomush/warden/internal/middleware"
	"github.com/holomush/warden/internal/notify"
	"github.com/holomush/warden/internal/observability"
	"github.com/holomush/warden/internal/token"
	"github.com/holomush/warden/internal/web"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// inbox records forgot-password notifications.
type inbox struct {
	mu   sync.Mutex
	reqs []notify.Request
}

func (i *inbox) SendForgotPassword(_ context.Context, req notify.Request) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reqs = append(i.reqs, req)
	return true
}

func (i *inbox) all() []notify.Request {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]notify.Request(nil), i.reqs...)
}

type apiFixture struct {
	server  *httptest.Server
	resets  *auth.ForgotPasswordService
	inbox   *inbox
	users   *memory.UserDirectory
	metrics *observability.Metrics
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := token.NewCodec(testSecret, "HS256")
	require.NoError(t, err)
	users := memory.NewUserDirectory()
	hasher := auth.NewArgon2idHasher()
	box := &inbox{}

	accounts, err := auth.NewAuthService(auth.ServiceConfig{
		Users:  users,
		Hasher: hasher,
		Tokens: codec,
		Logger: logger,
	})
	require.NoError(t, err)

	resets, err := auth.NewForgotPasswordService(auth.ForgotPasswordConfig{
		Users:    users,
		Resets:   memory.NewResetRepository(),
		Hasher:   hasher,
		Tokens:   codec,
		Notifier: box,
		Logger:   logger,
	})
	require.NoError(t, err)

	exempt, err := middleware.NewExemptionSet(middleware.DefaultExemptions())
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	authn, err := middleware.NewAuthenticator(codec, exempt,
		middleware.WithLogger(logger),
		middleware.WithMetrics(middleware.NewMetrics(reg)),
	)
	require.NoError(t, err)

	handler, err := web.NewHandler(accounts, resets, logger)
	require.NoError(t, err)
	metrics := observability.NewMetrics(reg)

	srv := httptest.NewServer(web.NewAPI(handler, authn, logger, metrics))
	t.Cleanup(func() {
		srv.Close()
		resets.Wait()
	})
	return &apiFixture{server: srv, resets: resets, inbox: box, users: users, metrics: metrics}
}

func (f *apiFixture) do(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, f.server.URL+path, r)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func registration() map[string]any {
	return map[string]any{
		"email":         "grace@example.com",
		"password":      "hunter2hunter2",
		"first_name":    "Grace",
		"last_name":     "Hopper",
		"date_of_birth": "1906-12-09",
	}
}

func TestAPI_RegisterLoginMeLogout(t *testing.T) {
	f := newAPI(t)

	status, body := f.do(t, http.MethodPost, "/register", "", registration())
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "bearer", body["token_type"])
	require.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "grace@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	status, body = f.do(t, http.MethodPost, "/login", "", map[string]any{
		"identifier": "Grace@Example.com",
		"password":   "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, status, body)
	tok := body["token"].(string)

	status, body = f.do(t, http.MethodGet, "/me", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "grace@example.com", body["email"])
	assert.Equal(t, "Grace", body["first_name"])

	status, _ = f.do(t, http.MethodPost, "/logout", tok, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_RegisterErrors(t *testing.T) {
	f := newAPI(t)

	status, _ := f.do(t, http.MethodPost, "/register", "", registration())
	require.Equal(t, http.StatusCreated, status)

	status, body := f.do(t, http.MethodPost, "/register", "", registration())
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "account already exists", body["error"])
	assert.Equal(t, 1, f.users.Len())

	bad := registration()
	bad["email"] = "someone-else@example.com"
	bad["first_name"] = ""
	status, body = f.do(t, http.MethodPost, "/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "first_name", body["field"])

	bad = registration()
	bad["email"] = "third@example.com"
	bad["date_of_birth"] = "09/12/1906"
	status, body = f.do(t, http.MethodPost, "/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "date_of_birth", body["field"])
}

func TestAPI_LoginFailuresAreUniform(t *testing.T) {
	f := newAPI(t)
	status, _ := f.do(t, http.MethodPost, "/register", "", registration())
	require.Equal(t, http.StatusCreated, status)

	wrongPassword, wpBody := f.do(t, http.MethodPost, "/login", "", map[string]any{
		"identifier": "grace@example.com", "password": "wrong",
	})
	unknownUser, uuBody := f.do(t, http.MethodPost, "/login", "", map[string]any{
		"identifier": "nobody@example.com", "password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword)
	assert.Equal(t, http.StatusUnauthorized, unknownUser)
	assert.Equal(t, wpBody, uuBody)
	assert.Equal(t, "invalid credentials", wpBody["error"])
}

func TestAPI_ProtectedRoutesRequireToken(t *testing.T) {
	f := newAPI(t)

	for _, tc := range []struct{ method, path, bearer string }{
		{http.MethodGet, "/me", ""},
		{http.MethodGet, "/me", "garbage"},
		{http.MethodPost, "/logout", ""},
	} {
		status, body := f.do(t, tc.method, tc.path, tc.bearer, nil)
		assert.Equal(t, http.StatusUnauthorized, status, tc.path)
		assert.Equal(t, "not authenticated", body["error"])
	}
}

func TestAPI_ForgotAndResetPassword(t *testing.T) {
	f := newAPI(t)
	status, _ := f.do(t, http.MethodPost, "/register", "", registration())
	require.Equal(t, http.StatusCreated, status)

	known, knownBody := f.do(t, http.MethodPost, "/forgot-password", "", map[string]any{"email": "grace@example.com"})
	unknown, unknownBody := f.do(t, http.MethodPost, "/forgot-password", "", map[string]any{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, known)
	assert.Equal(t, http.StatusOK, unknown)
	assert.Equal(t, knownBody, unknownBody)

	f.resets.Wait()
	sent := f.inbox.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "grace@example.com", sent[0].Email)
	resetToken := sent[0].ResetToken

	// A reset token is not an access token.
	status, _ = f.do(t, http.MethodGet, "/me", resetToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := f.do(t, http.MethodPost, "/reset-password", "", map[string]any{
		"token": resetToken, "new_password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = f.do(t, http.MethodPost, "/reset-password", "", map[string]any{
		"token": resetToken, "new_password": "another one",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid or expired reset token", body["error"])

	status, _ = f.do(t, http.MethodPost, "/login", "", map[string]any{
		"identifier": "grace@example.com", "password": "correct horse battery",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_ResetPasswordRejectsAccessToken(t *testing.T) {
	f := newAPI(t)
	_, body := f.do(t, http.MethodPost, "/register", "", registration())
	access := body["token"].(string)

	status, body := f.do(t, http.MethodPost, "/reset-password", "", map[string]any{
		"token": access, "new_password": "whatever",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid or expired reset token", body["error"])
}

func TestAPI_MalformedBody(t *testing.T) {
	f := newAPI(t)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, f.server.URL+"/login",
		bytes.NewReader([]byte(`{"identifier":`)))
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	f := newAPI(t)

	status, body := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["raw"])

	f.do(t, http.MethodGet, "/nowhere", "", nil)

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("/health", "GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("unmatched", "GET", "401")), 0)
}

func TestAPI_PreflightBypassesAuth(t *testing.T) {
	f := newAPI(t)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, f.server.URL+"/me", nil)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := web.NewHandler(nil, nil, nil)
	require.Error(t, err)
}

func TestServer_StartStop(t *testing.T) {
	srv := web.NewServer(web.ServerConfig{Addr: "127.0.0.1:0"}, http.NotFoundHandler(), nil)
	errCh, err := srv.Start()
	require.NoError(t, err)
	require.NotEmpty(t, srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, open := <-errCh
	assert.False(t, open)
}
