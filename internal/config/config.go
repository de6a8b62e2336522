// Package config loads the harness configuration from an optional YAML
// file plus HARNESS_* environment overrides. Configuration errors are the
// only fatal startup errors; everything downstream reports through
// Results.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file consulted when --config is not set.
const DefaultConfigFile = "harness.yaml"

// Credentials identifies one role's login.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Timeouts holds the three harness timeouts, in seconds.
type Timeouts struct {
	RequestSeconds int `yaml:"request_seconds"`
	WSOpenSeconds  int `yaml:"ws_open_seconds"`
	WSRecvSeconds  int `yaml:"ws_recv_seconds"`
}

// Config is the full harness configuration.
type Config struct {
	BaseURL      string                 `yaml:"base_url"`
	Credentials  map[string]Credentials `yaml:"credentials"`
	Timeouts     Timeouts               `yaml:"timeouts"`
	ArtifactPath string                 `yaml:"artifact_path"`
	Scenarios    []string               `yaml:"scenarios"`
}

func defaults() *Config {
	return &Config{
		BaseURL:     "http://localhost:8001",
		Credentials: map[string]Credentials{},
		Timeouts: Timeouts{
			RequestSeconds: 30,
			WSOpenSeconds:  5,
			WSRecvSeconds:  10,
		},
	}
}

// Load reads the config file at path (defaults apply when the file does
// not exist), applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultConfigFile
		if p := os.Getenv("HARNESS_CONFIG"); p != "" {
			path = p
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No file: env vars and defaults carry the run.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers HARNESS_* environment variables over the file config.
// Credentials come from HARNESS_CRED_<ROLE>_EMAIL / _PASSWORD pairs.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HARNESS_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("HARNESS_ARTIFACT"); v != "" {
		cfg.ArtifactPath = v
	}
	if v := os.Getenv("HARNESS_SCENARIOS"); v != "" {
		cfg.Scenarios = strings.Split(v, ",")
		for i := range cfg.Scenarios {
			cfg.Scenarios[i] = strings.TrimSpace(cfg.Scenarios[i])
		}
	}
	if v := os.Getenv("HARNESS_TIMEOUT_REQUEST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeouts.RequestSeconds = n
		}
	}
	if v := os.Getenv("HARNESS_TIMEOUT_WS_OPEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeouts.WSOpenSeconds = n
		}
	}
	if v := os.Getenv("HARNESS_TIMEOUT_WS_RECV"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeouts.WSRecvSeconds = n
		}
	}

	if cfg.Credentials == nil {
		cfg.Credentials = map[string]Credentials{}
	}
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "HARNESS_CRED_") {
			continue
		}
		rest := strings.TrimPrefix(key, "HARNESS_CRED_")
		var role, field string
		switch {
		case strings.HasSuffix(rest, "_EMAIL"):
			role, field = strings.TrimSuffix(rest, "_EMAIL"), "email"
		case strings.HasSuffix(rest, "_PASSWORD"):
			role, field = strings.TrimSuffix(rest, "_PASSWORD"), "password"
		default:
			continue
		}
		role = strings.ToLower(role)
		cred := cfg.Credentials[role]
		if field == "email" {
			cred.Email = val
		} else {
			cred.Password = val
		}
		cfg.Credentials[role] = cred
	}
}

func (c *Config) validate() error {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must start with http:// or https://", c.BaseURL)
	}
	if strings.HasSuffix(c.BaseURL, "/api") {
		return fmt.Errorf("base_url %q must not end with /api (the harness appends it)", c.BaseURL)
	}
	if c.Timeouts.RequestSeconds <= 0 || c.Timeouts.WSOpenSeconds <= 0 || c.Timeouts.WSRecvSeconds <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// APIBase returns the base URL with the /api prefix appended.
func (c *Config) APIBase() string {
	return c.BaseURL + "/api"
}

// Credential returns the login for a role, if configured.
func (c *Config) Credential(role string) (Credentials, bool) {
	cred, ok := c.Credentials[role]
	if !ok || cred.Email == "" || cred.Password == "" {
		return Credentials{}, false
	}
	return cred, true
}

// Snapshot returns a copy of the config safe to embed in the run
// artifact: passwords are redacted.
func (c *Config) Snapshot() map[string]any {
	creds := make(map[string]any, len(c.Credentials))
	for role, cred := range c.Credentials {
		creds[role] = map[string]any{"email": cred.Email, "password": "<redacted>"}
	}
	return map[string]any{
		"base_url":      c.APIBase(),
		"credentials":   creds,
		"timeouts":      c.Timeouts,
		"artifact_path": c.ArtifactPath,
		"scenarios":     c.Scenarios,
	}
}
