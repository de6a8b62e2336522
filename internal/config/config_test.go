package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harness.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
base_url: http://staging.example.com
credentials:
  admin:
    email: admin@beatspace.com
    password: admin123
artifact_path: out/run.json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIBase() != "http://staging.example.com/api" {
		t.Errorf("APIBase = %q", cfg.APIBase())
	}
	if cfg.Timeouts.RequestSeconds != 30 {
		t.Errorf("default request timeout = %d, want 30", cfg.Timeouts.RequestSeconds)
	}
	if cfg.Timeouts.WSRecvSeconds != 10 {
		t.Errorf("default ws recv timeout = %d, want 10", cfg.Timeouts.WSRecvSeconds)
	}

	cred, ok := cfg.Credential("admin")
	if !ok {
		t.Fatal("expected admin credential")
	}
	if cred.Email != "admin@beatspace.com" {
		t.Errorf("admin email = %q", cred.Email)
	}
	if _, ok := cfg.Credential("buyer"); ok {
		t.Error("buyer credential should be absent")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL == "" {
		t.Error("expected default base url")
	}
}

func TestLoad_RejectsAPISuffix(t *testing.T) {
	path := writeConfig(t, "base_url: http://localhost:8001/api\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for base_url ending in /api")
	}
}

func TestLoad_TrailingSlashTrimmed(t *testing.T) {
	path := writeConfig(t, "base_url: http://localhost:8001/\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBase() != "http://localhost:8001/api" {
		t.Errorf("APIBase = %q", cfg.APIBase())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "base_url: http://file.example.com\n")

	t.Setenv("HARNESS_BASE_URL", "http://env.example.com")
	t.Setenv("HARNESS_SCENARIOS", "admin-dashboard, marketplace-state")
	t.Setenv("HARNESS_CRED_BUYER_EMAIL", "buyer@beatspace.com")
	t.Setenv("HARNESS_CRED_BUYER_PASSWORD", "buyer123")
	t.Setenv("HARNESS_TIMEOUT_REQUEST", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://env.example.com" {
		t.Errorf("BaseURL = %q, want env override", cfg.BaseURL)
	}
	if len(cfg.Scenarios) != 2 || cfg.Scenarios[1] != "marketplace-state" {
		t.Errorf("Scenarios = %v", cfg.Scenarios)
	}
	if cfg.Timeouts.RequestSeconds != 12 {
		t.Errorf("RequestSeconds = %d, want 12", cfg.Timeouts.RequestSeconds)
	}
	cred, ok := cfg.Credential("buyer")
	if !ok || cred.Password != "buyer123" {
		t.Errorf("buyer credential = %+v, ok=%v", cred, ok)
	}
}

func TestSnapshot_RedactsPasswords(t *testing.T) {
	path := writeConfig(t, `
base_url: http://localhost:8001
credentials:
  admin:
    email: admin@beatspace.com
    password: hunter2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := cfg.Snapshot()
	creds := snap["credentials"].(map[string]any)
	admin := creds["admin"].(map[string]any)
	if admin["password"] != "<redacted>" {
		t.Errorf("password leaked into snapshot: %v", admin["password"])
	}
	if admin["email"] != "admin@beatspace.com" {
		t.Errorf("email = %v", admin["email"])
	}
}
