package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.App.Name != "recall" {
		t.Errorf("expected default app name, got %q", cfg.App.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Memory.TopK != 3 {
		t.Errorf("expected default top_k 3, got %d", cfg.Memory.TopK)
	}
	if cfg.Memory.Embedding != "local" {
		t.Errorf("expected local embedding default, got %q", cfg.Memory.Embedding)
	}
	if cfg.LLM.CallTimeout != 30*time.Second {
		t.Errorf("expected 30s call timeout, got %s", cfg.LLM.CallTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RECALL_SERVER__PORT", "9090")
	t.Setenv("RECALL_MEMORY__TOP_K", "5")
	t.Setenv("RECALL_LLM__MODEL", "claude-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("env port override not applied, got %d", cfg.Server.Port)
	}
	if cfg.Memory.TopK != 5 {
		t.Errorf("env top_k override not applied, got %d", cfg.Memory.TopK)
	}
	if cfg.LLM.Model != "claude-test" {
		t.Errorf("env model override not applied, got %q", cfg.LLM.Model)
	}
}

func TestLoad_FileThenEnvPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recall.yaml")
	body := []byte("server:\n  port: 7070\nmemory:\n  top_k: 7\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RECALL_SERVER__PORT", "9191")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("env should win over file, got %d", cfg.Server.Port)
	}
	if cfg.Memory.TopK != 7 {
		t.Errorf("file value not applied, got %d", cfg.Memory.TopK)
	}
	if cfg.App.Name != "recall" {
		t.Errorf("defaults lost after file load, got %q", cfg.App.Name)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("RECALL_APP__ENVIRONMENT", "weird")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for bad environment")
	}
}

func TestLoad_SecretDefaultsFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-ant-test" {
		t.Errorf("expected API key from conventional env var, got %q", cfg.LLM.APIKey)
	}
}
