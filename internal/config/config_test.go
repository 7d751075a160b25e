// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"testing"
	"time"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_SESSION_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/redirects.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/redirects.db")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.AdminPrefix != "/admin/" {
		t.Errorf("AdminPrefix = %q, want %q", cfg.AdminPrefix, "/admin/")
	}
	if !cfg.AppendSlash {
		t.Error("AppendSlash should default to true")
	}
	if cfg.SiteDomain != "localhost" {
		t.Errorf("SiteDomain = %q, want %q", cfg.SiteDomain, "localhost")
	}
	if cfg.WebhookWorkers != 4 {
		t.Errorf("WebhookWorkers = %d, want 4", cfg.WebhookWorkers)
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache should be false without OCMS_REDIS_URL")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_SESSION_SECRET", testSecret)
	setEnv(t, "OCMS_DB_PATH", "/custom/path.db")
	setEnv(t, "OCMS_SERVER_PORT", "3000")
	setEnv(t, "OCMS_ENV", "production")
	setEnv(t, "OCMS_ADMIN_PREFIX", "backend")
	setEnv(t, "OCMS_APPEND_SLASH", "false")
	setEnv(t, "OCMS_REDIS_URL", "redis://localhost:6379/0")
	setEnv(t, "OCMS_CACHE_TTL", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/custom/path.db")
	}
	if cfg.ServerPort != 3000 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 3000)
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment should be false in production")
	}
	if cfg.AdminPrefix != "/backend/" {
		t.Errorf("AdminPrefix = %q, want %q", cfg.AdminPrefix, "/backend/")
	}
	if cfg.AppendSlash {
		t.Error("AppendSlash should be false")
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache should be true")
	}
	if cfg.CacheTTLDuration() != time.Minute {
		t.Errorf("CacheTTLDuration = %v, want 1m", cfg.CacheTTLDuration())
	}
}

func TestLoad_RequiredSessionSecret(t *testing.T) {
	os.Clearenv()
	if _, err := Load(); err == nil {
		t.Error("Load() should fail without OCMS_SESSION_SECRET")
	}
}

func TestLoad_SessionSecretTooShort(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_SESSION_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Error("Load() should fail with a short secret")
	}
}

func TestLoad_WeakSecret(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_SESSION_SECRET", knownWeakSecrets[0])
	if _, err := Load(); err == nil {
		t.Error("Load() should reject a known default secret")
	}
}

func TestLoad_RootAdminPrefix(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_SESSION_SECRET", testSecret)
	setEnv(t, "OCMS_ADMIN_PREFIX", "/")
	if _, err := Load(); err == nil {
		t.Error("Load() should reject / as admin prefix")
	}
}

func TestConfig_ServerAddr(t *testing.T) {
	cfg := Config{ServerHost: "0.0.0.0", ServerPort: 9000}
	if got := cfg.ServerAddr(); got != "0.0.0.0:9000" {
		t.Errorf("ServerAddr() = %q, want %q", got, "0.0.0.0:9000")
	}
}

func TestConfig_EventRetention(t *testing.T) {
	tests := []struct {
		days int
		want time.Duration
	}{
		{0, 0},
		{-1, 0},
		{2, 48 * time.Hour},
	}
	for _, tt := range tests {
		cfg := Config{EventRetentionDays: tt.days}
		if got := cfg.EventRetention(); got != tt.want {
			t.Errorf("EventRetention(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	if hasMinimumEntropy("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Error("single class should fail")
	}
	if !hasMinimumEntropy("Abc123abc123abc123abc123abc123ab") {
		t.Error("three classes should pass")
	}
}
