// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package middleware

import (
	"path"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// DefaultExemptions lists the paths that never require a bearer token.
func DefaultExemptions() []string {
	return []string{
		"/",
		"/docs",
		"/docs/**",
		"/openapi.json",
		"/redoc",
		"/login",
		"/register",
		"/forgot-password",
		"/reset-password",
		"/health",
		"/metrics",
	}
}

type exemption struct {
	pattern string
	glob    glob.Glob
}

// ExemptionSet is an immutable set of path patterns that bypass
// authentication. Patterns use '/' as the separator, so "*" matches one
// segment and "**" matches any number.
type ExemptionSet struct {
	entries []exemption
}

// NewExemptionSet compiles patterns. It fails on the first invalid pattern.
func NewExemptionSet(patterns []string) (*ExemptionSet, error) {
	entries := make([]exemption, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, oops.In("middleware").
				Code("INVALID_EXEMPTION_PATTERN").
				With("pattern", p).
				Wrap(err)
		}
		entries = append(entries, exemption{pattern: p, glob: g})
	}
	return &ExemptionSet{entries: entries}, nil
}

// Match reports whether p is exempt. The path is cleaned first so
// "/login/" and "/docs/../login" match "/login".
func (s *ExemptionSet) Match(p string) bool {
	if s == nil {
		return false
	}
	if p == "" {
		p = "/"
	}
	p = path.Clean(p)
	for _, e := range s.entries {
		if e.glob.Match(p) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns in order.
func (s *ExemptionSet) Patterns() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.pattern
	}
	return out
}
