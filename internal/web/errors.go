// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/pkg/errutil"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps an error code onto a status and public message.
// Unknown codes are internal errors.
func statusFor(code string) (int, string) {
	switch code {
	case auth.CodeInvalidCredentials:
		return http.StatusUnauthorized, "invalid credentials"
	case auth.CodeDuplicateAccount:
		return http.StatusConflict, "account already exists"
	case auth.CodeInvalidRegistration:
		return http.StatusBadRequest, "invalid registration"
	case auth.CodeResetTokenInvalid, auth.CodeResetTokenExpired:
		return http.StatusBadRequest, "invalid or expired reset token"
	case auth.CodeResetPasswordEmpty:
		return http.StatusBadRequest, "new password is required"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError writes the public form of err. Internal errors are logged with
// their full context; the body never carries it.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)
	status, message := statusFor(code)

	resp := errorResponse{Error: message}
	switch {
	case status == http.StatusInternalServerError:
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
	case code == auth.CodeInvalidRegistration:
		resp.Field = field(err)
	default:
		h.logger.InfoContext(r.Context(), "request refused", "path", r.URL.Path, "code", code)
	}
	writeJSON(w, status, resp)
}

func field(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	f, _ := oopsErr.Context()["field"].(string)
	return f
}
