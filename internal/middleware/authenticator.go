// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/token"
)

// State is the terminal state of one authentication evaluation.
type State int

// Terminal states.
const (
	StateAllowed State = iota
	StateRejected
)

func (s State) String() string {
	if s == StateRejected {
		return "rejected"
	}
	return "allowed"
}

// Rejection is the externally visible reason class for a rejected request.
type Rejection int

// Rejection classes.
const (
	RejectionNone Rejection = iota
	RejectionMissingOrMalformedHeader
	RejectionInvalidToken
)

func (r Rejection) String() string {
	switch r {
	case RejectionMissingOrMalformedHeader:
		return "missing_or_malformed_header"
	case RejectionInvalidToken:
		return "invalid_token"
	default:
		return "none"
	}
}

// Internal rejection reasons, used for logs and metrics only.
const (
	ReasonMissingHeader   = "missing_header"
	ReasonMalformedHeader = "malformed_header"
	ReasonWrongPurpose    = "wrong_purpose"
)

// Outcome is the result of Evaluate.
type Outcome struct {
	State     State
	Rejection Rejection
	// DecodeKind is set when the token failed to decode.
	DecodeKind token.Kind
	// Reason is the precise internal cause of a rejection.
	Reason string
	// Identity is set only for authenticated requests.
	Identity *auth.Identity
}

// TokenDecoder verifies bearer tokens. *token.Codec satisfies it.
type TokenDecoder interface {
	Decode(raw string) (token.Claims, error)
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger for rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records evaluation outcomes.
func WithMetrics(m *Metrics) Option {
	return func(a *Authenticator) {
		a.metrics = m
	}
}

// WithTracer overrides the tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(a *Authenticator) {
		if t != nil {
			a.tracer = t
		}
	}
}

// Authenticator resolves the bearer token on each request into an identity.
// It holds no per-request state.
type Authenticator struct {
	decoder TokenDecoder
	exempt  *ExemptionSet
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(decoder TokenDecoder, exempt *ExemptionSet, opts ...Option) (*Authenticator, error) {
	if decoder == nil {
		return nil, oops.In("middleware").Code("AUTHENTICATOR_INVALID_CONFIG").Errorf("token decoder is required")
	}
	if exempt == nil {
		exempt = &ExemptionSet{}
	}
	a := &Authenticator{
		decoder: decoder,
		exempt:  exempt,
		logger:  slog.Default(),
		tracer:  otel.Tracer("warden/middleware"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Evaluate runs PathCheck, HeaderExtract, Decode and Attach for r.
//
// The auth.authenticate span is a leaf: it covers the whole evaluation,
// including the token decode, and ends before Wrap hands the request to the
// next handler. Downstream spans parent on the incoming request context, not
// on this span.
func (a *Authenticator) Evaluate(r *http.Request) Outcome {
	_, span := a.tracer.Start(r.Context(), "auth.authenticate",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		),
	)
	defer span.End()

	o := a.evaluate(r)
	span.SetAttributes(attribute.String("auth.state", o.State.String()))
	if o.State == StateRejected {
		span.SetAttributes(attribute.String("auth.reason", o.Reason))
	} else if o.Identity != nil {
		span.SetAttributes(attribute.String("auth.subject", o.Identity.ID))
	}
	a.metrics.record(o)
	return o
}

func (a *Authenticator) evaluate(r *http.Request) Outcome {
	// CORS preflight carries no credentials.
	if r.Method == http.MethodOptions {
		return Outcome{State: StateAllowed}
	}
	if a.exempt.Match(r.URL.Path) {
		return Outcome{State: StateAllowed}
	}

	raw, reason := bearerToken(r.Header.Get("Authorization"))
	if reason != "" {
		return Outcome{State: StateRejected, Rejection: RejectionMissingOrMalformedHeader, Reason: reason}
	}

	claims, err := a.decoder.Decode(raw)
	if err != nil {
		kind, ok := token.KindOf(err)
		if !ok {
			kind = token.KindMalformed
		}
		return Outcome{State: StateRejected, Rejection: RejectionInvalidToken, DecodeKind: kind, Reason: string(kind)}
	}
	if claims.Purpose != token.PurposeAccess {
		return Outcome{State: StateRejected, Rejection: RejectionInvalidToken, Reason: ReasonWrongPurpose}
	}

	return Outcome{
		State: StateAllowed,
		Identity: &auth.Identity{
			ID:        claims.Subject,
			Email:     claims.Email,
			FirstName: claims.FirstName,
			LastName:  claims.LastName,
			ExpiresAt: claims.ExpiresAt,
		},
	}
}

// bearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively; the token must be a single non-empty
// field.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", ReasonMissingHeader
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ReasonMalformedHeader
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", ReasonMalformedHeader
	}
	return raw, ""
}

const unauthorizedBody = `{"error":"not authenticated"}` + "\n"

// Wrap returns a handler that rejects unauthenticated requests with 401 and
// attaches the identity of authenticated ones to the request context.
func (a *Authenticator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o := a.Evaluate(r)
		if o.State == StateRejected {
			a.logger.WarnContext(r.Context(), "request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"rejection", o.Rejection.String(),
				"reason", o.Reason,
				"remote_addr", r.RemoteAddr,
			)
			WriteUnauthorized(w)
			return
		}
		if o.Identity != nil {
			r = r.WithContext(auth.WithIdentity(r.Context(), o.Identity))
		}
		next.ServeHTTP(w, r)
	})
}

// WriteUnauthorized writes the uniform 401 response.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}
