package config

import (
	"log/slog"
	"sync"
	"time"
)

// Accepted ranges for live-updatable settings. Out-of-range values are
// clamped, never rejected.
const (
	minDebounceMs     = 0
	maxDebounceMs     = 5000
	minBatchSize      = 1
	maxBatchSize      = 16
	minBatchTimeoutMs = 50
	maxBatchTimeoutMs = 5000
)

// Settings is one consistent snapshot of the per-session translation
// settings. Components read a snapshot at event-handling time; in-flight
// work completes under the snapshot it captured.
type Settings struct {
	SourceLang             string
	TargetLang             string
	Debounce               time.Duration
	InterimDebounceEnabled bool
	BatchSize              int
	BatchTimeout           time.Duration
	SyncDisplayMode        bool
}

// Runtime holds the live settings for one session, mutated atomically by
// config control and read by the translators.
type Runtime struct {
	mu sync.RWMutex
	v  Settings
}

func NewRuntime(s Settings) *Runtime {
	return &Runtime{v: s}
}

func (r *Runtime) Snapshot() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v
}

// Reset replaces the full settings, e.g. after a config file reload.
func (r *Runtime) Reset(s Settings) {
	r.mu.Lock()
	r.v = s
	r.mu.Unlock()
	slog.Info("translation settings reloaded",
		"source", s.SourceLang, "target", s.TargetLang,
		"debounce", s.Debounce, "batch_size", s.BatchSize)
}

// Update is a partial settings change, field names matching the
// update_translation_config RPC payload.
type Update struct {
	Source                 *string `json:"source"`
	Target                 *string `json:"target"`
	DebounceMs             *int    `json:"debounce"`
	BatchSize              *int    `json:"batch_size"`
	BatchTimeoutMs         *int    `json:"batch_timeout_ms"`
	SyncDisplayMode        *bool   `json:"sync_display_mode"`
	InterimDebounceEnabled *bool   `json:"interim_debounce_enabled"`
}

// Apply merges a partial update under the lock, clamping numeric fields to
// their accepted ranges.
func (r *Runtime) Apply(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.Source != nil && *u.Source != "" {
		r.v.SourceLang = *u.Source
	}
	if u.Target != nil && *u.Target != "" {
		r.v.TargetLang = *u.Target
	}
	if u.DebounceMs != nil {
		r.v.Debounce = clampDuration(*u.DebounceMs, minDebounceMs, maxDebounceMs)
	}
	if u.BatchSize != nil {
		r.v.BatchSize = clampInt(*u.BatchSize, minBatchSize, maxBatchSize)
	}
	if u.BatchTimeoutMs != nil {
		r.v.BatchTimeout = clampDuration(*u.BatchTimeoutMs, minBatchTimeoutMs, maxBatchTimeoutMs)
	}
	if u.SyncDisplayMode != nil {
		r.v.SyncDisplayMode = *u.SyncDisplayMode
	}
	if u.InterimDebounceEnabled != nil {
		r.v.InterimDebounceEnabled = *u.InterimDebounceEnabled
	}

	slog.Info("translation settings updated",
		"source", r.v.SourceLang, "target", r.v.TargetLang,
		"debounce", r.v.Debounce, "batch_size", r.v.BatchSize,
		"batch_timeout", r.v.BatchTimeout, "sync_display", r.v.SyncDisplayMode,
		"interim_debounce", r.v.InterimDebounceEnabled)
}
