package config

import (
	"strings"
	"testing"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "8000")
	t.Setenv("ADDRESS", "127.0.0.1")
	t.Setenv("ENV", "dev")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("DATA_DIR", "refdata")
	t.Setenv("RELOAD_SCHEDULE", "06:00")
	t.Setenv("AUDIT_DB_URL", "")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected port 8000, got %s", cfg.Port)
	}
	if cfg.DataDir != "refdata" {
		t.Errorf("expected data dir refdata, got %s", cfg.DataDir)
	}
	if cfg.LogRetentionWeeks != 4 {
		t.Errorf("expected default retention 4 weeks, got %d", cfg.LogRetentionWeeks)
	}
	if cfg.MaxRequestBody != 1048576 {
		t.Errorf("expected default body limit 1MB, got %d", cfg.MaxRequestBody)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"privileged port", "PORT", "80", "privileged"},
		{"non-numeric port", "PORT", "eighty", "valid number"},
		{"port out of range", "PORT", "70000", "between 1 and 65535"},
		{"public address", "ADDRESS", "8.8.8.8", "public IP"},
		{"garbage address", "ADDRESS", "not-an-ip", "valid IP"},
		{"unknown env", "ENV", "production!", "ENV must be one of"},
		{"unknown log level", "LOG_LEVEL", "verbose", "LOG_LEVEL must be one of"},
		{"bad schedule", "RELOAD_SCHEDULE", "6am", "must be HH:MM"},
		{"bad schedule entry", "RELOAD_SCHEDULE", "06:00;25:99", "must be HH:MM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestReloadTimes(t *testing.T) {
	setValidEnv(t)
	t.Setenv("RELOAD_SCHEDULE", "06:00; 18:30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	times := cfg.ReloadTimes()
	if len(times) != 2 || times[0] != "06:00" || times[1] != "18:30" {
		t.Errorf("expected [06:00 18:30], got %v", times)
	}
}

func TestLoadAllowsLocalhost(t *testing.T) {
	setValidEnv(t)
	t.Setenv("ADDRESS", "localhost")

	if _, err := Load(); err != nil {
		t.Errorf("localhost should be accepted: %v", err)
	}
}

func TestLoadAllowsPrivateNetwork(t *testing.T) {
	setValidEnv(t)
	t.Setenv("ADDRESS", "10.0.0.5")

	if _, err := Load(); err != nil {
		t.Errorf("private network address should be accepted: %v", err)
	}
}
