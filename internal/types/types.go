// Package types provides shared type definitions used across the monitor.
package types

import (
	"time"
)

// MonitorState represents the current state of the input monitor.
type MonitorState string

const (
	// StateStopped indicates the monitor is not running.
	StateStopped MonitorState = "stopped"
	// StateStarting indicates the monitor is initializing.
	StateStarting MonitorState = "starting"
	// StateRunning indicates the monitor is actively metering audio.
	StateRunning MonitorState = "running"
	// StateStopping indicates the monitor is shutting down.
	StateStopping MonitorState = "stopping"
)

const (
	// InitialRetryDelay is the starting delay between capture retry attempts.
	InitialRetryDelay = 3 * time.Second
	// MaxRetryDelay is the maximum delay between capture retry attempts.
	MaxRetryDelay = 60 * time.Second
	// MaxRetries is the maximum number of retry attempts for the capture source.
	MaxRetries = 10
	// SuccessThreshold is the run duration after which the retry count resets.
	SuccessThreshold = 30 * time.Second
	// ShutdownTimeout is the duration to wait for graceful shutdown.
	ShutdownTimeout = 3 * time.Second
	// PollInterval is the interval for polling process state.
	PollInterval = 50 * time.Millisecond
)

// MonitorStatus contains a summary of the monitor's operational state.
type MonitorStatus struct {
	State            MonitorState `json:"state"`                       // Current monitor state
	Uptime           string       `json:"uptime,omitzero"`             // Time since start
	LastError        string       `json:"last_error,omitzero"`         // Most recent error
	SourceRetryCount int          `json:"source_retry_count,omitzero"` // Capture retry attempts
	SourceMaxRetries int          `json:"source_max_retries"`          // Maximum capture retries
}

// LevelsPayload is the per-tick meter state pushed to dashboard clients.
type LevelsPayload struct {
	// Smoothed meter bar and peak line, both in dBFS clamped to [-60, 0].
	DisplayedDB     float64 `json:"displayed_db"`
	HeldDB          float64 `json:"held_db"`
	MaxSinceResetDB float64 `json:"max_since_reset_db"`

	// Zone feedback, updated on zone transitions only.
	Zone    string `json:"zone"`
	Message string `json:"message"`
	Clip    bool   `json:"clip"`

	// Raw per-channel measurements for the dual channel strip.
	RMSLeft   float64 `json:"rms_left"`
	RMSRight  float64 `json:"rms_right"`
	PeakLeft  float64 `json:"peak_left"`
	PeakRight float64 `json:"peak_right"`

	// Dead-input detection.
	Silence           bool  `json:"silence,omitzero"`
	SilenceDurationMs int64 `json:"silence_duration_ms,omitzero"`
}

// GraphConfig contains Microsoft Graph email notification settings.
type GraphConfig struct {
	TenantID     string // Azure AD tenant ID
	ClientID     string // App registration client ID
	ClientSecret string // App registration client secret
	FromAddress  string // Shared mailbox sender address
	Recipients   string // Comma-separated recipient addresses
}

// AlertLogEntry represents a single entry in the alert log file.
type AlertLogEntry struct {
	Timestamp    string  `json:"timestamp"`              // RFC3339 timestamp
	Event        string  `json:"event"`                  // Event type (silence_start, silence_end, clip_start, clip_end, test)
	DurationMs   int64   `json:"duration_ms,omitempty"`  // Event duration in milliseconds
	LevelLeftDB  float64 `json:"level_left_db"`          // Left channel level at event time
	LevelRightDB float64 `json:"level_right_db"`         // Right channel level at event time
	ThresholdDB  float64 `json:"threshold_db,omitempty"` // Detection threshold in dB
}

// VersionInfo describes the running build and any available update.
type VersionInfo struct {
	Current         string `json:"current"`                   // Running version
	Latest          string `json:"latest,omitzero"`           // Latest released version
	Commit          string `json:"commit,omitzero"`           // Build commit hash
	BuildTime       string `json:"build_time,omitzero"`       // Human-readable build time
	UpdateAvailable bool   `json:"update_available,omitzero"` // Latest is newer than current
}
