package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
session: standup-2026-03
port: 9000
log_level: debug
database_url: postgres://huddle:pw@db:5432/huddle

nats:
  url: nats://bus:4222
  token: sekrit
  ingest: true

stt:
  url: wss://stt.example.com/v1/listen
  api_key: stt-key
  model: whisper-rt
  language: en
  sample_rate: 8000

detection:
  min_confidence: 0.6
  escalation:
    endpoint: https://llm.example.com
    deployment: gpt-4o-mini
    api_key: esc-key

memory:
  recent_finals_window_sec: 60
  recent_finals_limit: 8
  related_acts_window_sec: 600
  related_acts_limit: 3
  open_acts_window_sec: 900
  open_acts_limit: 20

answer:
  provider: gemini
  model: gemini-2.5-pro
  gemini_api_key: gm-key
`

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Session != "standup-2026-03" {
		t.Errorf("Session = %q", cfg.Session)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if !cfg.Nats.Ingest || cfg.Nats.Token != "sekrit" {
		t.Errorf("Nats = %+v", cfg.Nats)
	}
	if cfg.STT.SampleRate != 8000 {
		t.Errorf("STT.SampleRate = %d", cfg.STT.SampleRate)
	}
	if cfg.Detection.MinConfidence != 0.6 {
		t.Errorf("MinConfidence = %v", cfg.Detection.MinConfidence)
	}
	if cfg.Detection.Escalation.Deployment != "gpt-4o-mini" {
		t.Errorf("Escalation = %+v", cfg.Detection.Escalation)
	}
	if cfg.Answer.Provider != "gemini" || cfg.Answer.Model != "gemini-2.5-pro" {
		t.Errorf("Answer = %+v", cfg.Answer)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("session: s1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Port != 8800 {
		t.Errorf("default Port = %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Nats.URL != "nats://127.0.0.1:4222" {
		t.Errorf("default Nats.URL = %q", cfg.Nats.URL)
	}
	if cfg.STT.SampleRate != 16000 {
		t.Errorf("default SampleRate = %d", cfg.STT.SampleRate)
	}
	if cfg.Detection.MinConfidence != 0.7 {
		t.Errorf("default MinConfidence = %v", cfg.Detection.MinConfidence)
	}
	if cfg.Answer.Provider != "anthropic" || cfg.Answer.Model == "" {
		t.Errorf("default Answer = %+v", cfg.Answer)
	}
}

func TestMemoryOptions(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	opts := cfg.MemoryOptions()
	if opts.SessionID != "standup-2026-03" {
		t.Errorf("SessionID = %q", opts.SessionID)
	}
	if opts.RecentFinalsWindow != 60*time.Second {
		t.Errorf("RecentFinalsWindow = %v", opts.RecentFinalsWindow)
	}
	if opts.RelatedActsWindow != 10*time.Minute {
		t.Errorf("RelatedActsWindow = %v", opts.RelatedActsWindow)
	}
	if opts.OpenActsLimit != 20 {
		t.Errorf("OpenActsLimit = %d", opts.OpenActsLimit)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad provider", "answer:\n  provider: oracle\n", "answer.provider"},
		{"bad confidence", "detection:\n  min_confidence: 1.5\n", "min_confidence"},
		{"bad port", "port: 70000\n", "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("session: from-file\ndatabase_url: postgres://file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HUDDLE_SESSION", "from-env")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session != "from-env" {
		t.Errorf("Session = %q, env should win", cfg.Session)
	}
	if cfg.DatabaseURL != "postgres://env" {
		t.Errorf("DatabaseURL = %q, env should win", cfg.DatabaseURL)
	}
	if cfg.Answer.AnthropicAPIKey != "env-key" {
		t.Errorf("AnthropicAPIKey = %q", cfg.Answer.AnthropicAPIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8800 {
		t.Errorf("Port = %d", cfg.Port)
	}
}
