package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.WSURL != "ws://localhost:8080/ws" {
		t.Errorf("ws url default: %q", cfg.Server.WSURL)
	}
	if cfg.Timers.HeartbeatSeconds != 10 {
		t.Errorf("heartbeat default: %d", cfg.Timers.HeartbeatSeconds)
	}
	if cfg.Timers.OfferExpirySeconds != 30 {
		t.Errorf("offer expiry default: %d", cfg.Timers.OfferExpirySeconds)
	}
	if cfg.Timers.ResumeWaitSeconds != 5 {
		t.Errorf("resume wait default: %d", cfg.Timers.ResumeWaitSeconds)
	}
	if cfg.Timers.StatusPollMillis != 500 {
		t.Errorf("status poll default: %d", cfg.Timers.StatusPollMillis)
	}
	if cfg.Reconnect.MaxDelaySeconds != 30 {
		t.Errorf("reconnect cap default: %d", cfg.Reconnect.MaxDelaySeconds)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("RIDEHAIL_WS_URL", "wss://prod.example.com/ws")
	t.Setenv("RIDEHAIL_HEARTBEAT_SECONDS", "15")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.WSURL != "wss://prod.example.com/ws" {
		t.Errorf("env override lost: %q", cfg.Server.WSURL)
	}
	if cfg.Timers.HeartbeatSeconds != 15 {
		t.Errorf("env override lost: %d", cfg.Timers.HeartbeatSeconds)
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  ws_url: ws://staging:9090/ws
timers:
  offer_expiry_seconds: 45
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RIDEHAIL_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.WSURL != "ws://staging:9090/ws" {
		t.Errorf("yaml value lost: %q", cfg.Server.WSURL)
	}
	if cfg.Timers.OfferExpirySeconds != 45 {
		t.Errorf("yaml value lost: %d", cfg.Timers.OfferExpirySeconds)
	}
	// Незаданные в файле значения добираются дефолтами
	if cfg.Timers.HeartbeatSeconds != 10 {
		t.Errorf("default not applied alongside yaml: %d", cfg.Timers.HeartbeatSeconds)
	}
}

func TestLoadConfigEnvBeatsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  ws_url: ws://file:1/ws\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RIDEHAIL_CONFIG", path)
	t.Setenv("RIDEHAIL_WS_URL", "ws://env:2/ws")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.WSURL != "ws://env:2/ws" {
		t.Errorf("env should beat yaml, got %q", cfg.Server.WSURL)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("RIDEHAIL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("missing config file accepted")
	}
}
