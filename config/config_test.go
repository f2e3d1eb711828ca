package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("expected 30s llm timeout, got %s", cfg.LLM.Timeout)
	}
	if cfg.LLM.AttemptTimeout != 10*time.Second {
		t.Errorf("expected 10s attempt timeout, got %s", cfg.LLM.AttemptTimeout)
	}
	if cfg.LLM.GroqModel != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected groq model %q", cfg.LLM.GroqModel)
	}
	if cfg.Session.HistoryLimit != 20 || cfg.Session.MaxSessions != 100 {
		t.Errorf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Validation.MaxContextLength != 3000 {
		t.Errorf("expected 3000 context budget, got %d", cfg.Validation.MaxContextLength)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:8000" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wanderai.yaml")
	content := []byte("llm:\n  primary: gemini\n  timeout: 10s\nserver:\n  port: 9090\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WANDERAI_SESSION_MAX_SESSIONS", "7")
	t.Setenv("GROQ_API_KEY", "legacy-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Primary != ProviderGemini {
		t.Errorf("expected primary from file, got %q", cfg.LLM.Primary)
	}
	if cfg.LLM.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.LLM.Timeout)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Session.MaxSessions != 7 {
		t.Errorf("expected env override 7, got %d", cfg.Session.MaxSessions)
	}
	if cfg.LLM.GroqAPIKey != "legacy-key" {
		t.Errorf("expected legacy env key, got %q", cfg.LLM.GroqAPIKey)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("session:\n  store: postgres\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown session store")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
