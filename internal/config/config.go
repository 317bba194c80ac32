// Package config provides YAML-based configuration with environment
// overrides for secrets and endpoints.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soundbench/huddle/internal/memory"
)

// Config is the top-level huddle configuration, loaded from config.yaml.
type Config struct {
	Session  string `yaml:"session"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	DatabaseURL string `yaml:"database_url"`

	Nats      NatsConfig      `yaml:"nats"`
	STT       STTConfig       `yaml:"stt"`
	Detection DetectionConfig `yaml:"detection"`
	Memory    MemoryConfig    `yaml:"memory"`
	Answer    AnswerConfig    `yaml:"answer"`
}

// NatsConfig holds bus connection settings. Ingest controls whether
// serve subscribes to transcript segment events.
type NatsConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Ingest bool   `yaml:"ingest"`
}

// STTConfig holds the streaming transcription endpoint settings.
type STTConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
}

// DetectionConfig tunes the act detector.
type DetectionConfig struct {
	MinConfidence float64          `yaml:"min_confidence"`
	Escalation    EscalationConfig `yaml:"escalation"`
}

// EscalationConfig points at the remote sentence classifier. Escalation
// is disabled when Endpoint is empty.
type EscalationConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIKey     string `yaml:"api_key"`
}

// MemoryConfig bounds the context windows, in seconds.
type MemoryConfig struct {
	RecentFinalsWindowSec int `yaml:"recent_finals_window_sec"`
	RecentFinalsLimit     int `yaml:"recent_finals_limit"`
	RelatedActsWindowSec  int `yaml:"related_acts_window_sec"`
	RelatedActsLimit      int `yaml:"related_acts_limit"`
	OpenActsWindowSec     int `yaml:"open_acts_window_sec"`
	OpenActsLimit         int `yaml:"open_acts_limit"`
}

// AnswerConfig selects and configures the answer provider.
type AnswerConfig struct {
	Provider        string `yaml:"provider"` // anthropic, gemini or none
	Model           string `yaml:"model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
}

// Load reads a YAML config file, applies defaults and env overrides and
// validates the result. An empty path loads defaults and env only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config without touching
// the environment. Used by tests.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets and endpoints override the file.
func (c *Config) applyEnv() {
	c.Session = envStr("HUDDLE_SESSION", c.Session)
	c.Port = envInt("HUDDLE_PORT", c.Port)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = envStr("DATABASE_URL", c.DatabaseURL)
	c.Nats.URL = envStr("NATS_URL", c.Nats.URL)
	c.Nats.Token = envStr("NATS_TOKEN", c.Nats.Token)
	c.STT.URL = envStr("STT_URL", c.STT.URL)
	c.STT.APIKey = envStr("STT_API_KEY", c.STT.APIKey)
	c.Detection.Escalation.Endpoint = envStr("CLASSIFIER_ENDPOINT", c.Detection.Escalation.Endpoint)
	c.Detection.Escalation.Deployment = envStr("CLASSIFIER_DEPLOYMENT", c.Detection.Escalation.Deployment)
	c.Detection.Escalation.APIKey = envStr("CLASSIFIER_KEY", c.Detection.Escalation.APIKey)
	c.Answer.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", c.Answer.AnthropicAPIKey)
	c.Answer.GeminiAPIKey = envStr("GEMINI_API_KEY", c.Answer.GeminiAPIKey)
}

func (c *Config) applyDefaults() {
	if c.Session == "" {
		c.Session = "default"
	}
	if c.Port == 0 {
		c.Port = 8800
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Nats.URL == "" {
		c.Nats.URL = "nats://127.0.0.1:4222"
	}
	if c.STT.SampleRate == 0 {
		c.STT.SampleRate = 16000
	}
	if c.Detection.MinConfidence == 0 {
		c.Detection.MinConfidence = 0.7
	}
	if c.Memory.RecentFinalsWindowSec == 0 {
		c.Memory.RecentFinalsWindowSec = 40
	}
	if c.Memory.RecentFinalsLimit == 0 {
		c.Memory.RecentFinalsLimit = 4
	}
	if c.Memory.RelatedActsWindowSec == 0 {
		c.Memory.RelatedActsWindowSec = 1200
	}
	if c.Memory.RelatedActsLimit == 0 {
		c.Memory.RelatedActsLimit = 5
	}
	if c.Memory.OpenActsWindowSec == 0 {
		c.Memory.OpenActsWindowSec = 1200
	}
	if c.Memory.OpenActsLimit == 0 {
		c.Memory.OpenActsLimit = 50
	}
	if c.Answer.Provider == "" {
		c.Answer.Provider = "anthropic"
	}
	if c.Answer.Model == "" {
		switch c.Answer.Provider {
		case "anthropic":
			c.Answer.Model = "claude-sonnet-4-20250514"
		case "gemini":
			c.Answer.Model = "gemini-2.0-flash"
		}
	}
}

func (c *Config) validate() error {
	var errs []string
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("detection.min_confidence %v out of range", c.Detection.MinConfidence))
	}
	switch c.Answer.Provider {
	case "anthropic", "gemini", "none":
	default:
		errs = append(errs, fmt.Sprintf("answer.provider %q unknown", c.Answer.Provider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MemoryOptions converts the window settings for the store.
func (c *Config) MemoryOptions() memory.Options {
	return memory.Options{
		SessionID:          c.Session,
		RecentFinalsWindow: time.Duration(c.Memory.RecentFinalsWindowSec) * time.Second,
		RecentFinalsLimit:  c.Memory.RecentFinalsLimit,
		RelatedActsWindow:  time.Duration(c.Memory.RelatedActsWindowSec) * time.Second,
		RelatedActsLimit:   c.Memory.RelatedActsLimit,
		OpenActsWindow:     time.Duration(c.Memory.OpenActsWindowSec) * time.Second,
		OpenActsLimit:      c.Memory.OpenActsLimit,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
