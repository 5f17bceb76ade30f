package config_test

import (
	"strings"
	"testing"

	"studioline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Auth.TokenTTLHours != 24*7 {
		t.Fatalf("unexpected default ttl: %d", cfg.Auth.TokenTTLHours)
	}
	if cfg.Defaults.TaskPriority != "medium" {
		t.Fatalf("unexpected default priority: %s", cfg.Defaults.TaskPriority)
	}
}

func TestFromYAMLMergesOverDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
auth:
  token_ttl_hours: 48
webhooks:
  - url: https://hooks.example.com/studioline
    events: [task.created, task.reviewed]
    secret: hook-secret
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Auth.TokenTTLHours != 48 {
		t.Fatalf("override lost: %d", cfg.Auth.TokenTTLHours)
	}
	// Untouched sections keep their defaults.
	if cfg.Auth.BcryptCost != 10 {
		t.Fatalf("default bcrypt cost lost: %d", cfg.Auth.BcryptCost)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].Secret != "hook-secret" {
		t.Fatalf("webhook config not parsed: %+v", cfg.Webhooks)
	}
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"zero ttl", "auth:\n  token_ttl_hours: 0\n", "token_ttl_hours"},
		{"bad priority", "defaults:\n  task_priority: asap\n", "task_priority"},
		{"unknown role", "staff:\n  roles: [admin, intern]\n", "unknown role"},
		{"missing admin role", "staff:\n  roles: [editor]\n", "must include admin"},
		{"webhook without url", "webhooks:\n  - events: [task.created]\n", "url is required"},
	}
	for _, tc := range cases {
		_, err := config.FromYAML([]byte(tc.yaml))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load empty workspace: %v", err)
	}
	if cfg.Auth.TokenTTLHours != 24*7 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
