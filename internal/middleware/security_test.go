// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultSecurityHeadersConfig(false))(simpleOKHandler())
	rr := executeRequest(h, httptest.NewRequest(http.MethodGet, "/admin/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if hsts := rr.Header().Get("Strict-Transport-Security"); !strings.HasPrefix(hsts, "max-age=31536000") {
		t.Errorf("Strict-Transport-Security = %q", hsts)
	}
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.HasPrefix(csp, "default-src 'self'; ") {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
}

func TestSecurityHeaders_Development(t *testing.T) {
	h := SecurityHeaders(DefaultSecurityHeadersConfig(true))(simpleOKHandler())
	rr := executeRequest(h, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should be disabled in development")
	}
}

func TestSecurityHeaders_ExcludePaths(t *testing.T) {
	cfg := DefaultSecurityHeadersConfig(false)
	cfg.ExcludePaths = []string{"/metrics"}
	h := SecurityHeaders(cfg)(simpleOKHandler())

	rr := executeRequest(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Header().Get("X-Content-Type-Options") != "" {
		t.Error("excluded path should not get security headers")
	}
}
