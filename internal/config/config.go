package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Google      GoogleConfig      `yaml:"google"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Translation TranslationConfig `yaml:"translation"`
	Web         WebConfig         `yaml:"web"`
}

type GoogleConfig struct {
	Credentials string   `yaml:"credentials"`  // path to service account JSON
	STTLanguage string   `yaml:"stt_language"` // primary language
	AltLangs    []string `yaml:"alt_langs"`    // additional languages for auto-detection
}

type GeminiConfig struct {
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`          // e.g. "gemini-3-flash-preview"
	FallbackModel string `yaml:"fallback_model"` // used on rate limit
}

// TranslationConfig is the launch-time view of the per-session settings.
// Live updates go through Runtime.
type TranslationConfig struct {
	SourceLang             string `yaml:"source_lang"`
	TargetLang             string `yaml:"target_lang"`
	DebounceMs             *int   `yaml:"debounce_ms"`
	InterimDebounceEnabled *bool  `yaml:"interim_debounce_enabled"`
	BatchSize              int    `yaml:"batch_size"`
	BatchTimeoutMs         int    `yaml:"batch_timeout_ms"`
	SyncDisplayMode        bool   `yaml:"sync_display_mode"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		Gemini: GeminiConfig{
			Model:         "gemini-3-flash-preview",
			FallbackModel: "gemini-2.0-flash",
		},
		Google: GoogleConfig{
			STTLanguage: "en-US",
		},
		Translation: TranslationConfig{
			SourceLang:     "en",
			TargetLang:     "zh",
			BatchSize:      3,
			BatchTimeoutMs: 500,
		},
		Web: WebConfig{Port: 8899},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	return cfg, nil
}

// Settings converts the file section into clamped runtime settings.
// Unset fields fall back to the defaults (500ms debounce, batch of 3,
// 500ms batch timeout, async display, debounce enabled).
func (tc TranslationConfig) Settings() Settings {
	s := Settings{
		SourceLang:             tc.SourceLang,
		TargetLang:             tc.TargetLang,
		Debounce:               500 * time.Millisecond,
		InterimDebounceEnabled: true,
		BatchSize:              clampInt(tc.BatchSize, minBatchSize, maxBatchSize),
		BatchTimeout:           clampDuration(tc.BatchTimeoutMs, minBatchTimeoutMs, maxBatchTimeoutMs),
		SyncDisplayMode:        tc.SyncDisplayMode,
	}
	if tc.DebounceMs != nil {
		s.Debounce = clampDuration(*tc.DebounceMs, minDebounceMs, maxDebounceMs)
	}
	if tc.InterimDebounceEnabled != nil {
		s.InterimDebounceEnabled = *tc.InterimDebounceEnabled
	}
	if s.SourceLang == "" {
		s.SourceLang = "en"
	}
	if s.TargetLang == "" {
		s.TargetLang = "zh"
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(ms, lo, hi int) time.Duration {
	return time.Duration(clampInt(ms, lo, hi)) * time.Millisecond
}
