package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testYAML = `
env: development
server:
  port: 9000
  allowed_origins: ["https://app.example.fr"]
session:
  store: memory
  ttl: 2h
security:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  encryption_key: "fedcba9876543210fedcba9876543210"
ai:
  api_key: "sk-test"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.fr" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("ttl = %v", cfg.Session.TTL)
	}
	// Defaults fill what the file leaves out.
	if cfg.AI.BaseURL != "https://openrouter.ai/api/v1" || cfg.AI.MaxTokens != 1000 || cfg.Portal.Attempts != 3 {
		t.Errorf("defaults not applied: %+v %+v", cfg.AI, cfg.Portal)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ASSISTANT_SERVER_PORT", "8123")
	t.Setenv("ASSISTANT_SESSION_TTL", "30m")
	t.Setenv("ASSISTANT_AI_PROVIDER", "gemini")

	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8123 || cfg.Session.TTL != 30*time.Minute || cfg.AI.Provider != AIGemini {
		t.Fatalf("env not applied: port %d ttl %v provider %s", cfg.Server.Port, cfg.Session.TTL, cfg.AI.Provider)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatal(err)
	}

	cfg.Security.JWTSecret = "short"
	cfg.Env = "production"
	cfg.Debug = true
	cfg.Session.Store = "sqlite"
	cfg.AI.APIKey = ""
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1", "proxy.local"}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"jwt_secret", "debug", "session.store", "ai.api_key", `trusted_proxies: invalid address "proxy.local"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Env: "production", Log: LogConfig{Level: "warn"}}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info logged at warn level")
	}
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}
