package types

import "github.com/oszuidwest/zwfm-miccheck/internal/audio"

// WSStatusResponse is sent to clients with full monitor status.
type WSStatusResponse struct {
	Type              string         `json:"type"`                // Message type identifier
	CaptureAvailable  bool           `json:"capture_available"`   // Capture binary is available
	Monitor           MonitorStatus  `json:"monitor"`             // Monitor status
	Devices           []audio.Device `json:"devices"`             // Available audio devices
	Meter             MeterSettings  `json:"meter"`               // Meter tuning settings
	SilenceThreshold  float64        `json:"silence_threshold"`   // Silence threshold in dB
	SilenceDurationMs int64          `json:"silence_duration_ms"` // Silence duration in milliseconds
	SilenceRecoveryMs int64          `json:"silence_recovery_ms"` // Recovery duration in milliseconds
	AlertWebhook      string         `json:"alert_webhook"`       // Webhook URL for alerts
	AlertLogPath      string         `json:"alert_log_path"`      // Alert log file path
	GraphTenantID     string         `json:"graph_tenant_id"`     // Azure AD tenant ID
	GraphClientID     string         `json:"graph_client_id"`     // App registration client ID
	GraphFromAddress  string         `json:"graph_from_address"`  // Shared mailbox address
	GraphRecipients   string         `json:"graph_recipients"`    // Comma-separated recipients
	Settings          WSSettings     `json:"settings"`            // Current settings
	Version           VersionInfo    `json:"version"`             // Version information
}

// MeterSettings contains the meter tuning values shown in status responses.
type MeterSettings struct {
	AttackMs     int64   `json:"attack_ms"`     // Attack time constant in milliseconds
	ReleaseMs    int64   `json:"release_ms"`    // Release time constant in milliseconds
	HoldMs       int64   `json:"hold_ms"`       // Peak hold duration in milliseconds
	DecayPerSec  float64 `json:"decay_per_sec"` // Peak decay rate in dB fractions per second
	QuietBelowDB float64 `json:"quiet_below_db"` // Upper bound of the quiet zone
	HotAboveDB   float64 `json:"hot_above_db"`   // Lower bound of the hot zone
	ClipAtDB     float64 `json:"clip_at_db"`     // Lower bound of the clip zone
	HysteresisDB float64 `json:"hysteresis_db"`  // Zone transition hysteresis
}

// WSSettings contains the settings sub-object in status responses.
type WSSettings struct {
	AudioInput string `json:"audio_input"` // Selected audio input device
	Platform   string `json:"platform"`    // Operating system platform
}

// WSLevelsResponse is sent to clients with meter state updates.
type WSLevelsResponse struct {
	Type   string        `json:"type"`   // Message type identifier
	Levels LevelsPayload `json:"levels"` // Current meter state
}

// WSConfigResponse is sent in response to config/get.
// Contains the full configuration without runtime state.
type WSConfigResponse struct {
	Type   string `json:"type"` // "config"
	Config any    `json:"config"`
}

// WSCommandResult is the standard response for command execution.
// Used by slash-style commands (audio/update, meter/update, etc.)
type WSCommandResult struct {
	Type    string           `json:"type"`            // "<command>_result"
	Success bool             `json:"success"`         // true if command succeeded
	Error   *ValidationError `json:"error,omitempty"` // Validation errors if failed
	Data    any              `json:"data,omitempty"`  // Optional response data
}

// APIConfigResponse is returned by GET /api/config.
type APIConfigResponse struct {
	// Audio
	AudioInput string         `json:"audio_input"`
	Devices    []audio.Device `json:"devices"`
	Platform   string         `json:"platform"`

	// Meter
	Meter MeterSettings `json:"meter"`

	// Silence detection
	SilenceThreshold  float64 `json:"silence_threshold"`
	SilenceDurationMs int64   `json:"silence_duration_ms"`
	SilenceRecoveryMs int64   `json:"silence_recovery_ms"`

	// Notifications
	WebhookURL       string `json:"webhook_url"`
	LogPath          string `json:"log_path"`
	GraphTenantID    string `json:"graph_tenant_id"`
	GraphClientID    string `json:"graph_client_id"`
	GraphHasSecret   bool   `json:"graph_has_secret"`
	GraphFromAddress string `json:"graph_from_address"`
	GraphRecipients  string `json:"graph_recipients"`
}

// WSAlertLogResult carries alert log entries, newest first.
type WSAlertLogResult struct {
	Type    string          `json:"type"` // "alert_log"
	Entries []AlertLogEntry `json:"entries"`
	Error   string          `json:"error,omitempty"`
}

// WSTestResult is sent to clients after a test operation completes.
type WSTestResult struct {
	Type     string `json:"type"`            // Message type identifier
	TestType string `json:"test_type"`       // Type of test performed
	Success  bool   `json:"success"`         // Test succeeded
	Error    string `json:"error,omitempty"` // Error message if failed
}
