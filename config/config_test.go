package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for explicit missing file")
	}

	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network.Retries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.Network.Retries)
	}
	if cfg.Network.Timeout != 15*time.Second {
		t.Fatalf("expected 15s network timeout, got %v", cfg.Network.Timeout)
	}
	if cfg.Translation.TargetLanguage != "Chinese" {
		t.Fatalf("expected Chinese target, got %s", cfg.Translation.TargetLanguage)
	}
	if got := cfg.Languages["Chinese"]; got != "zh" {
		t.Fatalf("expected zh code for Chinese, got %q", got)
	}
	if len(cfg.Planner.Priority) != 3 || cfg.Planner.Priority[0] != "MedicalMCP" {
		t.Fatalf("unexpected default priority: %v", cfg.Planner.Priority)
	}
	if len(cfg.Planner.Routes) != 2 {
		t.Fatalf("expected 2 default routes, got %d", len(cfg.Planner.Routes))
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
general:
  debug: true
planner:
  priority: ["WikipediaSearch"]
translation:
  target_language: English
storage:
  redis:
    enabled: true
    host: localhost
    port: "6379"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.General.Debug {
		t.Fatalf("expected debug true")
	}
	if len(cfg.Planner.Priority) != 1 || cfg.Planner.Priority[0] != "WikipediaSearch" {
		t.Fatalf("unexpected priority: %v", cfg.Planner.Priority)
	}
	if cfg.Translation.TargetLanguage != "English" {
		t.Fatalf("unexpected target language: %s", cfg.Translation.TargetLanguage)
	}
	if !cfg.Storage.Redis.Enabled {
		t.Fatalf("expected redis enabled")
	}
}

func TestRedisValidate(t *testing.T) {
	r := RedisConfig{Enabled: true}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected validation error for missing host")
	}
	r = RedisConfig{Enabled: false}
	if err := r.Validate(); err != nil {
		t.Fatalf("disabled redis should not validate: %v", err)
	}
}
