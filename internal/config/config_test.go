package config

import (
	"os"
	"testing"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	os.Setenv("HTTP_ADDRESS", "")
	os.Setenv("REALTIME_MODEL_ID", "")
	cfg := Load()
	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("expected default http address, got %q", cfg.HTTPAddress)
	}
	if cfg.RealtimeModel == "" {
		t.Fatalf("expected default realtime model id")
	}

	os.Setenv("HTTP_ADDRESS", ":9999")
	os.Setenv("REALTIME_MODEL_ID", "test-model")
	os.Setenv("AGENT_URL", "ws://localhost:1234")
	cfg = Load()
	if cfg.HTTPAddress != ":9999" {
		t.Fatalf("expected :9999, got %q", cfg.HTTPAddress)
	}
	if cfg.RealtimeModel != "test-model" {
		t.Fatalf("expected test-model, got %q", cfg.RealtimeModel)
	}
	if cfg.AgentURL != "ws://localhost:1234" {
		t.Fatalf("expected agent url override, got %q", cfg.AgentURL)
	}
}
