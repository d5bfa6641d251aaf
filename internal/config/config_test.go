package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	yaml := []byte(`
server:
  port: 18700
  host: localhost
providers:
  primary:
    type: openai
    base_url: https://api.openai.com/v1
    api_key_env: OPENAI_API_KEY
    model: gpt-4o
  tertiary:
    type: ollama
    base_url: http://localhost:11434
    model: llama3
confirmations:
  default_ttl: 2m
trace:
  max_traces: 50
  ttl: 1h
`)
	f, _ := os.CreateTemp("", "config-*.yaml")
	f.Write(yaml)
	f.Close()
	defer os.Remove(f.Name())

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 18700 {
		t.Errorf("Expected port 18700, got %d", cfg.Server.Port)
	}
	if cfg.Providers.Primary.Type != "openai" {
		t.Errorf("Expected primary provider openai, got %s", cfg.Providers.Primary.Type)
	}
	if cfg.Confirm.DefaultTTL != 2*time.Minute {
		t.Errorf("Expected 2m confirmation ttl, got %s", cfg.Confirm.DefaultTTL)
	}
	if cfg.Trace.MaxTraces != 50 {
		t.Errorf("Expected max_traces 50, got %d", cfg.Trace.MaxTraces)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed on defaults: %v", err)
	}
	if cfg.Confirm.DefaultTTL != 5*time.Minute {
		t.Errorf("Expected default confirmation ttl 5m, got %s", cfg.Confirm.DefaultTTL)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid port")
	}
}

func TestValidateUnknownProviderType(t *testing.T) {
	cfg := Default()
	cfg.Providers.Primary.Type = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for unknown provider type")
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := Default()
	cfg.Admins = []string{"42"}
	if !cfg.IsAdmin("42") {
		t.Error("Expected 42 to be admin")
	}
	if cfg.IsAdmin("7") {
		t.Error("Expected 7 not to be admin")
	}
}
