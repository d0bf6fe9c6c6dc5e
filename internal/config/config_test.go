package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.Transport != "gemini" {
		t.Fatalf("expected gemini transport, got %q", cfg.Session.Transport)
	}
	if cfg.Playback.LeadMS != 50 || cfg.Playback.DebounceMS != 250 {
		t.Fatalf("expected 50ms lead and 250ms debounce, got %d and %d", cfg.Playback.LeadMS, cfg.Playback.DebounceMS)
	}
	if cfg.Interruptions.Policy != "keyword_gated" {
		t.Fatalf("expected keyword gated policy, got %q", cfg.Interruptions.Policy)
	}
	if cfg.ReconnectDelay() != 500*time.Millisecond {
		t.Fatalf("expected 500ms reconnect delay, got %v", cfg.ReconnectDelay())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emalive.yaml")
	content := `
session:
  transport: relay
  relay_url: ws://localhost:9000/live
  model: test-model
interruptions:
  policy: hard_stop
  keywords: [halt, enough]
video:
  enabled: true
  sources: [frame.png]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.RelayURL != "ws://localhost:9000/live" || cfg.Session.Model != "test-model" {
		t.Fatalf("expected session overrides from file, got %+v", cfg.Session)
	}
	if cfg.Session.Voice != "Zephyr" {
		t.Fatalf("expected unset fields to keep defaults, got voice %q", cfg.Session.Voice)
	}
	if cfg.Interruptions.Policy != "hard_stop" || len(cfg.Interruptions.Keywords) != 2 {
		t.Fatalf("expected interruption overrides, got %+v", cfg.Interruptions)
	}
	if cfg.Video.Quality != 40 {
		t.Fatalf("expected default video quality, got %d", cfg.Video.Quality)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EMA_LIVE_SESSION_API_KEY", "secret")
	t.Setenv("EMA_LIVE_AUDIO_BACKEND", "portaudio")
	t.Setenv("EMA_LIVE_PLAYBACK_LEAD_MS", "80")
	t.Setenv("EMA_LIVE_INTERRUPTIONS_KEYWORDS", "stop, wait ,")
	t.Setenv("EMA_LIVE_NATS_ENABLED", "true")
	t.Setenv("EMA_LIVE_NATS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("EMA_LIVE_RECONNECT_DELAY_MS", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.APIKey != "secret" {
		t.Fatalf("expected api key override")
	}
	if cfg.Audio.Backend != "portaudio" {
		t.Fatalf("expected portaudio backend, got %q", cfg.Audio.Backend)
	}
	if cfg.Playback.LeadMS != 80 {
		t.Fatalf("expected lead 80, got %d", cfg.Playback.LeadMS)
	}
	if strings.Join(cfg.Interruptions.Keywords, "|") != "stop|wait" {
		t.Fatalf("expected trimmed keywords, got %v", cfg.Interruptions.Keywords)
	}
	if !cfg.NATS.Enabled || len(cfg.NATS.Servers) != 2 {
		t.Fatalf("expected nats overrides, got %+v", cfg.NATS)
	}
	if cfg.ReconnectDelayMS != 500 {
		t.Fatalf("expected invalid numbers to be ignored, got %d", cfg.ReconnectDelayMS)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown transport", func(c *Config) { c.Session.Transport = "carrier-pigeon" }, "session.transport"},
		{"relay without url", func(c *Config) { c.Session.Transport = "relay" }, "relay_url"},
		{"unknown backend", func(c *Config) { c.Audio.Backend = "alsa" }, "audio.backend"},
		{"unknown policy", func(c *Config) { c.Interruptions.Policy = "never" }, "interruptions.policy"},
		{"video without sources", func(c *Config) { c.Video.Enabled = true }, "video.sources"},
		{"negative delay", func(c *Config) { c.ReconnectDelayMS = -1 }, "reconnect_delay_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
