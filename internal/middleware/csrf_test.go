// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSRF_RejectsCrossSitePost(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	h := CSRF(DefaultCSRFConfig(key, false, ""))(simpleOKHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/redirects", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	if code := executeRequest(h, req).Code; code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", code, http.StatusForbidden)
	}
}

func TestSkipCSRF(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	h := SkipCSRF("/admin/api/")(CSRF(DefaultCSRFConfig(key, false, ""))(simpleOKHandler()))

	req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/redirects", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	if code := executeRequest(h, req).Code; code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
}

func TestDefaultCSRFConfig(t *testing.T) {
	cfg := DefaultCSRFConfig([]byte("k"), true, "localhost:8080")
	if len(cfg.TrustedOrigins) != 1 || cfg.TrustedOrigins[0] != "localhost:8080" {
		t.Errorf("TrustedOrigins = %v", cfg.TrustedOrigins)
	}
	if cfg := DefaultCSRFConfig([]byte("k"), false, "localhost:8080"); len(cfg.TrustedOrigins) != 0 {
		t.Errorf("production TrustedOrigins = %v", cfg.TrustedOrigins)
	}
}
