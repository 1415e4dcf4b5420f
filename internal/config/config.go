// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-miccheck/internal/audio"
	"github.com/oszuidwest/zwfm-miccheck/internal/metering"
	"github.com/oszuidwest/zwfm-miccheck/internal/types"
	"github.com/oszuidwest/zwfm-miccheck/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort           = 8080
	DefaultWebUsername       = "admin"
	DefaultWebPassword       = "miccheck"
	DefaultSilenceThreshold  = -40.0
	DefaultSilenceDurationMs = 15000 // 15 seconds in milliseconds
	DefaultSilenceRecoveryMs = 5000  // 5 seconds in milliseconds
	DefaultStationName       = "ZuidWest FM"
	DefaultStationColorLight = "#E6007E"
	DefaultStationColorDark  = "#E6007E"
	DefaultMeterAttackMs     = 250
	DefaultMeterReleaseMs    = 800
	DefaultMeterHoldMs       = 1500
	DefaultMeterDecayPerSec  = 2.0
	DefaultQuietBelowDB      = -24.0
	DefaultHotAboveDB        = -6.0
	DefaultHysteresisDB      = 1.0
)

// Validation patterns define regular expressions for configuration value validation.
var (
	// Station name: any printable characters except control chars (blocks CRLF injection in emails)
	stationNamePattern  = regexp.MustCompile(`^[^\x00-\x1F\x7F]+$`)
	stationColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path"` // Path to FFmpeg binary (empty = use PATH)
	Port       int    `json:"port"`        // HTTP server port
	Username   string `json:"username"`    // Login username
	Password   string `json:"password"`    // Login password
}

// WebConfig holds station branding settings.
type WebConfig struct {
	StationName string `json:"station_name"` // Station display name
	ColorLight  string `json:"color_light"`  // Theme color for light mode (#RRGGBB)
	ColorDark   string `json:"color_dark"`   // Theme color for dark mode (#RRGGBB)
}

// AudioConfig holds audio input device settings.
type AudioConfig struct {
	Input string `json:"input"` // Audio input device identifier
}

// MeterConfig holds meter ballistics and zone tuning parameters.
// Zero values fall back to defaults when read through Snapshot.
type MeterConfig struct {
	AttackMs     int64   `json:"attack_ms"`      // Attack time constant in milliseconds
	ReleaseMs    int64   `json:"release_ms"`     // Release time constant in milliseconds
	HoldMs       int64   `json:"hold_ms"`        // Peak hold duration in milliseconds
	DecayPerSec  float64 `json:"decay_per_sec"`  // Peak decay rate in gap fractions per second
	QuietBelowDB float64 `json:"quiet_below_db"` // Upper bound of the quiet zone
	HotAboveDB   float64 `json:"hot_above_db"`   // Lower bound of the hot zone
	ClipAtDB     float64 `json:"clip_at_db"`     // Lower bound of the clip zone
	HysteresisDB float64 `json:"hysteresis_db"`  // Zone transition hysteresis
}

// SilenceDetectionConfig holds silence detection thresholds and timing parameters.
type SilenceDetectionConfig struct {
	ThresholdDB float64 `json:"threshold_db"` // Silence threshold in dB
	DurationMs  int64   `json:"duration_ms"`  // Duration below threshold before silence alert
	RecoveryMs  int64   `json:"recovery_ms"`  // Duration above threshold before recovery
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url"` // Webhook URL for alerts
}

// LogConfig holds log file notification settings.
type LogConfig struct {
	Path string `json:"path"` // Log file path for alert events
}

// EmailConfig holds Microsoft Graph email notification settings.
type EmailConfig struct {
	TenantID     string `json:"tenant_id"`     // Azure AD tenant ID
	ClientID     string `json:"client_id"`     // App registration client ID
	ClientSecret string `json:"client_secret"` // App registration client secret
	FromAddress  string `json:"from_address"`  // Shared mailbox sender address
	Recipients   string `json:"recipients"`    // Comma-separated recipient addresses
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook WebhookConfig `json:"webhook"` // Webhook settings
	Log     LogConfig     `json:"log"`     // Log file settings
	Email   EmailConfig   `json:"email"`   // Email settings
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System           SystemConfig           `json:"system"`
	Web              WebConfig              `json:"web"`
	Audio            AudioConfig            `json:"audio"`
	Meter            MeterConfig            `json:"meter"`
	SilenceDetection SilenceDetectionConfig `json:"silence_detection"`
	Notifications    NotificationsConfig    `json:"notifications"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port:     DefaultWebPort,
			Username: DefaultWebUsername,
			Password: DefaultWebPassword,
		},
		Web: WebConfig{
			StationName: DefaultStationName,
			ColorLight:  DefaultStationColorLight,
			ColorDark:   DefaultStationColorDark,
		},
		Audio:            AudioConfig{},
		Meter:            MeterConfig{},
		SilenceDetection: SilenceDetectionConfig{},
		Notifications:    NotificationsConfig{},
		filePath:         filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := c.validate(); err != nil {
		return err
	}

	return nil
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	// Validate station name
	name := c.Web.StationName
	if name == "" || len(name) > 30 || !stationNamePattern.MatchString(name) {
		return fmt.Errorf("invalid station_name %q: must be 1-30 printable characters", name)
	}
	// Validate station colors
	if !stationColorPattern.MatchString(c.Web.ColorLight) {
		return fmt.Errorf("invalid color_light %q: must be hex format (#RRGGBB)", c.Web.ColorLight)
	}
	if !stationColorPattern.MatchString(c.Web.ColorDark) {
		return fmt.Errorf("invalid color_dark %q: must be hex format (#RRGGBB)", c.Web.ColorDark)
	}
	// Validate zone ordering after defaults have been resolved
	quiet := cmp.Or(c.Meter.QuietBelowDB, DefaultQuietBelowDB)
	hot := cmp.Or(c.Meter.HotAboveDB, DefaultHotAboveDB)
	return validateMeterZones(quiet, hot, c.Meter.ClipAtDB)
}

// validateMeterZones checks that the zone boundaries are strictly ordered.
// Enforced both on load and on every meter update, so a bad update can
// never write a config the next start would refuse.
func validateMeterZones(quiet, hot, clip float64) error {
	if quiet >= hot || hot > clip {
		return fmt.Errorf("invalid meter zones: quiet_below_db (%.1f) < hot_above_db (%.1f) <= clip_at_db (%.1f) required",
			quiet, hot, clip)
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	// System defaults
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}
	if c.System.Username == "" {
		c.System.Username = DefaultWebUsername
	}
	if c.System.Password == "" {
		c.System.Password = DefaultWebPassword
	}
	// Web defaults
	if c.Web.StationName == "" {
		c.Web.StationName = DefaultStationName
	}
	if c.Web.ColorLight == "" {
		c.Web.ColorLight = DefaultStationColorLight
	}
	if c.Web.ColorDark == "" {
		c.Web.ColorDark = DefaultStationColorDark
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// AudioInput returns the configured audio input device.
func (c *Config) AudioInput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Input
}

// GetFFmpegPath returns the configured FFmpeg binary path.
func (c *Config) GetFFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// LogPath returns the configured log file path for notifications.
func (c *Config) LogPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notifications.Log.Path
}

// GraphConfig returns a copy of the current Graph/Email configuration.
func (c *Config) GraphConfig() types.GraphConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.GraphConfig{
		TenantID:     c.Notifications.Email.TenantID,
		ClientID:     c.Notifications.Email.ClientID,
		ClientSecret: c.Notifications.Email.ClientSecret,
		FromAddress:  c.Notifications.Email.FromAddress,
		Recipients:   c.Notifications.Email.Recipients,
	}
}

// --- Setters for individual settings ---

// SetAudioInput updates the audio input device and saves the configuration.
func (c *Config) SetAudioInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	return c.saveLocked()
}

// SetMeterConfig updates all meter tuning fields and saves the configuration.
func (c *Config) SetMeterConfig(m MeterConfig) error {
	quiet := cmp.Or(m.QuietBelowDB, DefaultQuietBelowDB)
	hot := cmp.Or(m.HotAboveDB, DefaultHotAboveDB)
	if err := validateMeterZones(quiet, hot, m.ClipAtDB); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Meter = m
	return c.saveLocked()
}

// SetSilenceThreshold updates the silence detection threshold and saves the configuration.
func (c *Config) SetSilenceThreshold(threshold float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SilenceDetection.ThresholdDB = threshold
	return c.saveLocked()
}

// SetSilenceDurationMs updates the silence duration and saves the configuration.
func (c *Config) SetSilenceDurationMs(ms int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SilenceDetection.DurationMs = ms
	return c.saveLocked()
}

// SetSilenceRecoveryMs updates the silence recovery time and saves the configuration.
func (c *Config) SetSilenceRecoveryMs(ms int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SilenceDetection.RecoveryMs = ms
	return c.saveLocked()
}

// SetWebhookURL updates the webhook URL and saves the configuration.
func (c *Config) SetWebhookURL(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Webhook.URL = url
	return c.saveLocked()
}

// SetLogPath updates the log file path and saves the configuration.
// An empty path disables file logging.
func (c *Config) SetLogPath(path string) error {
	if path != "" {
		if err := util.ValidatePath("log_path", path); err != nil {
			return err
		}
		if err := util.CheckPathWritable(filepath.Dir(path)); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Log.Path = path
	return c.saveLocked()
}

// SetGraphConfig updates all Microsoft Graph/Email configuration fields and saves.
func (c *Config) SetGraphConfig(tenantID, clientID, clientSecret, fromAddress, recipients string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Email.TenantID = tenantID
	c.Notifications.Email.ClientID = clientID
	c.Notifications.Email.ClientSecret = clientSecret
	c.Notifications.Email.FromAddress = fromAddress
	c.Notifications.Email.Recipients = recipients
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	WebPort     int
	WebUser     string
	WebPassword string

	// Web/Branding
	StationName       string
	StationColorLight string
	StationColorDark  string

	// Audio
	AudioInput string

	// Meter
	MeterAttackMs     int64
	MeterReleaseMs    int64
	MeterHoldMs       int64
	MeterDecayPerSec  float64
	MeterQuietBelowDB float64
	MeterHotAboveDB   float64
	MeterClipAtDB     float64
	MeterHysteresisDB float64

	// Silence Detection
	SilenceThreshold  float64
	SilenceDurationMs int64
	SilenceRecoveryMs int64

	// Notifications
	WebhookURL        string
	LogPath           string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphFromAddress  string
	GraphRecipients   string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		// System
		WebPort:     c.System.Port,
		WebUser:     c.System.Username,
		WebPassword: c.System.Password,

		// Web/Branding
		StationName:       c.Web.StationName,
		StationColorLight: c.Web.ColorLight,
		StationColorDark:  c.Web.ColorDark,

		// Audio
		AudioInput: c.Audio.Input,

		// Meter (with defaults; clip_at_db defaults to 0 which is its zero value)
		MeterAttackMs:     cmp.Or(c.Meter.AttackMs, DefaultMeterAttackMs),
		MeterReleaseMs:    cmp.Or(c.Meter.ReleaseMs, DefaultMeterReleaseMs),
		MeterHoldMs:       cmp.Or(c.Meter.HoldMs, DefaultMeterHoldMs),
		MeterDecayPerSec:  cmp.Or(c.Meter.DecayPerSec, DefaultMeterDecayPerSec),
		MeterQuietBelowDB: cmp.Or(c.Meter.QuietBelowDB, DefaultQuietBelowDB),
		MeterHotAboveDB:   cmp.Or(c.Meter.HotAboveDB, DefaultHotAboveDB),
		MeterClipAtDB:     c.Meter.ClipAtDB,
		MeterHysteresisDB: cmp.Or(c.Meter.HysteresisDB, DefaultHysteresisDB),

		// Silence Detection (with defaults)
		SilenceThreshold:  cmp.Or(c.SilenceDetection.ThresholdDB, DefaultSilenceThreshold),
		SilenceDurationMs: cmp.Or(c.SilenceDetection.DurationMs, DefaultSilenceDurationMs),
		SilenceRecoveryMs: cmp.Or(c.SilenceDetection.RecoveryMs, DefaultSilenceRecoveryMs),

		// Notifications
		WebhookURL:        c.Notifications.Webhook.URL,
		LogPath:           c.Notifications.Log.Path,
		GraphTenantID:     c.Notifications.Email.TenantID,
		GraphClientID:     c.Notifications.Email.ClientID,
		GraphClientSecret: c.Notifications.Email.ClientSecret,
		GraphFromAddress:  c.Notifications.Email.FromAddress,
		GraphRecipients:   c.Notifications.Email.Recipients,
	}
}

// MeteringConfig builds the metering pipeline configuration from the snapshot,
// starting from the pipeline defaults so unexposed tunables keep their values.
func (s *Snapshot) MeteringConfig() metering.Config {
	cfg := metering.DefaultConfig()
	cfg.AttackTau = time.Duration(s.MeterAttackMs) * time.Millisecond
	cfg.ReleaseTau = time.Duration(s.MeterReleaseMs) * time.Millisecond
	cfg.HoldDuration = time.Duration(s.MeterHoldMs) * time.Millisecond
	cfg.DecayRate = s.MeterDecayPerSec
	cfg.QuietBelowDB = s.MeterQuietBelowDB
	cfg.HotAboveDB = s.MeterHotAboveDB
	cfg.ClipAtDB = s.MeterClipAtDB
	cfg.HysteresisDB = s.MeterHysteresisDB
	return cfg
}

// MeterSettings returns the meter tuning values for status responses.
func (s *Snapshot) MeterSettings() types.MeterSettings {
	return types.MeterSettings{
		AttackMs:     s.MeterAttackMs,
		ReleaseMs:    s.MeterReleaseMs,
		HoldMs:       s.MeterHoldMs,
		DecayPerSec:  s.MeterDecayPerSec,
		QuietBelowDB: s.MeterQuietBelowDB,
		HotAboveDB:   s.MeterHotAboveDB,
		ClipAtDB:     s.MeterClipAtDB,
		HysteresisDB: s.MeterHysteresisDB,
	}
}

// SilenceConfig builds the silence detector configuration from the snapshot.
func (s *Snapshot) SilenceConfig() audio.SilenceConfig {
	return audio.SilenceConfig{
		ThresholdDB: s.SilenceThreshold,
		DurationMs:  s.SilenceDurationMs,
		RecoveryMs:  s.SilenceRecoveryMs,
	}
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasGraph reports whether Microsoft Graph email notifications are configured.
func (s *Snapshot) HasGraph() bool {
	return s.GraphTenantID != "" && s.GraphClientID != "" && s.GraphClientSecret != "" &&
		s.GraphFromAddress != "" && s.GraphRecipients != ""
}

// HasLogPath reports whether a log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}
