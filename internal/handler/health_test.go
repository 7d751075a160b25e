// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/version"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

func TestHealth_Public(t *testing.T) {
	env := newTestEnv(t)
	h := NewHealthHandler(env.DB, HealthConfig{})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != checkHealthy {
		t.Errorf("status = %v", resp["status"])
	}
	if _, ok := resp["checks"]; ok {
		t.Error("unauthenticated response exposes checks")
	}
}

func TestHealth_APIKeyDetails(t *testing.T) {
	env := newTestEnv(t)
	keys := service.NewAPIKeyService(env.DB)
	raw, _, err := keys.Create(context.Background(), "monitor", []string{model.PermissionRedirectsRead}, time.Hour)
	if err != nil {
		t.Fatalf("Create key: %v", err)
	}
	h := NewHealthHandler(env.DB, HealthConfig{
		APIKeys: keys,
		Cache:   fakePinger{err: errors.New("connection refused")},
		Version: version.Info{Version: "v1.2.3"},
	})

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != checkDegraded || resp.Version != "v1.2.3" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Checks["database"].Status != checkHealthy {
		t.Errorf("database check = %+v", resp.Checks["database"])
	}
	if resp.Checks["cache"].Status != checkUnhealthy || resp.Checks["cache"].Message != "connection refused" {
		t.Errorf("cache check = %+v", resp.Checks["cache"])
	}
	if resp.System == nil || resp.System.NumCPU == 0 {
		t.Error("verbose system info missing")
	}
}

func TestLivenessAndReadiness(t *testing.T) {
	env := newTestEnv(t)
	h := NewHealthHandler(env.DB, HealthConfig{})

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("liveness status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("readiness status = %d", w.Code)
	}

	_ = env.DB.Close()
	w = httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness after close = %d, want 503", w.Code)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
