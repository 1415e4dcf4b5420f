package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// --- Audio settings ---

// AudioUpdateRequest is the request body for audio/update.
type AudioUpdateRequest struct {
	Input string `json:"input" validate:"omitempty"`
}

// --- Meter tuning ---

// MeterUpdateRequest is the request body for meter/update. Fields left out
// keep their current values.
type MeterUpdateRequest struct {
	AttackMs     *int64   `json:"attack_ms" validate:"omitempty,gte=10,lte=5000"`
	ReleaseMs    *int64   `json:"release_ms" validate:"omitempty,gte=10,lte=10000"`
	HoldMs       *int64   `json:"hold_ms" validate:"omitempty,gte=100,lte=10000"`
	DecayPerSec  *float64 `json:"decay_per_sec" validate:"omitempty,gt=0,lte=20"`
	QuietBelowDB *float64 `json:"quiet_below_db" validate:"omitempty,gte=-60,lte=0"`
	HotAboveDB   *float64 `json:"hot_above_db" validate:"omitempty,gte=-60,lte=0"`
	HysteresisDB *float64 `json:"hysteresis_db" validate:"omitempty,gte=0,lte=6"`
}

// --- Silence detection settings ---

// SilenceUpdateRequest is the request body for silence/update.
type SilenceUpdateRequest struct {
	ThresholdDB *float64 `json:"threshold_db" validate:"omitempty,gte=-60,lte=0"`
	DurationMs  *int64   `json:"duration_ms" validate:"omitempty,gte=500,lte=300000"`
	RecoveryMs  *int64   `json:"recovery_ms" validate:"omitempty,gte=500,lte=60000"`
}

// --- Notification settings ---

// WebhookUpdateRequest is the request body for notifications/webhook/update.
type WebhookUpdateRequest struct {
	URL string `json:"url" validate:"omitempty,max=2048"`
}

// LogUpdateRequest is the request body for notifications/log/update.
type LogUpdateRequest struct {
	Path string `json:"path" validate:"omitempty,max=4096"`
}

// EmailUpdateRequest is the request body for notifications/email/update.
type EmailUpdateRequest struct {
	TenantID     string `json:"tenant_id" validate:"omitempty,max=100"`
	ClientID     string `json:"client_id" validate:"omitempty,max=100"`
	ClientSecret string `json:"client_secret" validate:"omitempty,max=500"`
	FromAddress  string `json:"from_address" validate:"omitempty,max=254"`
	Recipients   string `json:"recipients" validate:"omitempty,max=1000"`
}
