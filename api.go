package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/oszuidwest/zwfm-miccheck/internal/audio"
	"github.com/oszuidwest/zwfm-miccheck/internal/config"
	"github.com/oszuidwest/zwfm-miccheck/internal/notify"
	"github.com/oszuidwest/zwfm-miccheck/internal/server"
	"github.com/oszuidwest/zwfm-miccheck/internal/types"
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// parseJSON reads and parses JSON from request body.
// Returns parsed value and true on success, zero value and false on failure.
func parseJSON[T any](s *Server, w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := s.readJSON(r, &v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return v, false
	}
	return v, true
}

// coalesce returns the first non-zero value from the provided values.
func coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// deref returns the pointed-to value, or the zero value for nil.
func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// handleAPIConfig returns the full configuration for the frontend.
// GET /api/config
func (s *Server) handleAPIConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := s.config.Snapshot()

	resp := types.APIConfigResponse{
		// Audio
		AudioInput: cfg.AudioInput,
		Devices:    audio.Devices(),
		Platform:   runtime.GOOS,

		// Meter
		Meter: cfg.MeterSettings(),

		// Silence detection
		SilenceThreshold:  cfg.SilenceThreshold,
		SilenceDurationMs: cfg.SilenceDurationMs,
		SilenceRecoveryMs: cfg.SilenceRecoveryMs,

		// Notifications
		WebhookURL:       cfg.WebhookURL,
		LogPath:          cfg.LogPath,
		GraphTenantID:    cfg.GraphTenantID,
		GraphClientID:    cfg.GraphClientID,
		GraphHasSecret:   cfg.GraphClientSecret != "",
		GraphFromAddress: cfg.GraphFromAddress,
		GraphRecipients:  cfg.GraphRecipients,
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPIDevices returns available audio devices.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": audio.Devices(),
	})
}

// handleAPIStatus returns the current monitor status.
// GET /api/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.buildWSStatus())
}

// handleAPILevels returns the current meter levels.
// GET /api/levels
func (s *Server) handleAPILevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.monitor.Levels())
}

// SettingsUpdateRequest is the request body for POST /api/settings.
type SettingsUpdateRequest struct {
	// Audio
	AudioInput *string `json:"audio_input"`

	// Meter
	MeterAttackMs     *int64   `json:"meter_attack_ms"`
	MeterReleaseMs    *int64   `json:"meter_release_ms"`
	MeterHoldMs       *int64   `json:"meter_hold_ms"`
	MeterDecayPerSec  *float64 `json:"meter_decay_per_sec"`
	MeterQuietBelowDB *float64 `json:"meter_quiet_below_db"`
	MeterHotAboveDB   *float64 `json:"meter_hot_above_db"`
	MeterHysteresisDB *float64 `json:"meter_hysteresis_db"`

	// Silence detection
	SilenceThreshold  *float64 `json:"silence_threshold"`
	SilenceDurationMs *int64   `json:"silence_duration_ms"`
	SilenceRecoveryMs *int64   `json:"silence_recovery_ms"`

	// Webhook
	WebhookURL *string `json:"webhook_url"`

	// Log
	LogPath *string `json:"log_path"`

	// Email (Graph)
	GraphTenantID     *string `json:"graph_tenant_id"`
	GraphClientID     *string `json:"graph_client_id"`
	GraphClientSecret *string `json:"graph_client_secret"`
	GraphFromAddress  *string `json:"graph_from_address"`
	GraphRecipients   *string `json:"graph_recipients"`
}

// validateSettings checks a settings update against the same range rules
// the WebSocket commands enforce, by routing the fields through their
// request structs. Returns nil when everything is in range.
func validateSettings(req *SettingsUpdateRequest) *types.ValidationError {
	meter := server.MeterUpdateRequest{
		AttackMs:     req.MeterAttackMs,
		ReleaseMs:    req.MeterReleaseMs,
		HoldMs:       req.MeterHoldMs,
		DecayPerSec:  req.MeterDecayPerSec,
		QuietBelowDB: req.MeterQuietBelowDB,
		HotAboveDB:   req.MeterHotAboveDB,
		HysteresisDB: req.MeterHysteresisDB,
	}
	silence := server.SilenceUpdateRequest{
		ThresholdDB: req.SilenceThreshold,
		DurationMs:  req.SilenceDurationMs,
		RecoveryMs:  req.SilenceRecoveryMs,
	}
	webhook := server.WebhookUpdateRequest{URL: deref(req.WebhookURL)}
	logPath := server.LogUpdateRequest{Path: deref(req.LogPath)}
	email := server.EmailUpdateRequest{
		TenantID:     deref(req.GraphTenantID),
		ClientID:     deref(req.GraphClientID),
		ClientSecret: deref(req.GraphClientSecret),
		FromAddress:  deref(req.GraphFromAddress),
		Recipients:   deref(req.GraphRecipients),
	}

	var verr *types.ValidationError
	for _, data := range []any{&meter, &silence, &webhook, &logPath, &email} {
		if v := server.ValidateRequest(data); v != nil {
			if verr == nil {
				verr = types.NewValidationError()
			}
			verr.Errors = append(verr.Errors, v.Errors...)
		}
	}
	return verr
}

// handleAPISettings updates all settings atomically.
// POST /api/settings
func (s *Server) handleAPISettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := parseJSON[SettingsUpdateRequest](s, w, r)
	if !ok {
		return
	}

	if verr := validateSettings(&req); verr != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": verr})
		return
	}

	// Track if audio input changed (requires monitor restart)
	cfg := s.config.Snapshot()
	audioInputChanged := req.AudioInput != nil && *req.AudioInput != cfg.AudioInput

	// Apply all settings in groups
	if err := s.applyAudioSettings(&req); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	meterChanged, err := s.applyMeterSettings(&req, &cfg)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.applySilenceSettings(&req); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.applyNotificationSettings(&req, &cfg); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Rebuild the metering session with the new ballistics
	if meterChanged {
		s.monitor.ReloadMeterConfig()
	}

	// Restart monitor if audio input changed
	if audioInputChanged && s.captureAvailable {
		go func() {
			if s.monitor.State() == types.StateRunning {
				if err := s.monitor.Restart(); err != nil {
					slog.Error("failed to restart monitor after audio input change", "error", err)
				}
			}
		}()
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// applyAudioSettings applies audio-related settings from the request.
func (s *Server) applyAudioSettings(req *SettingsUpdateRequest) error {
	if req.AudioInput != nil {
		if err := s.config.SetAudioInput(*req.AudioInput); err != nil {
			return err
		}
	}
	return nil
}

// applyMeterSettings applies meter ballistics settings from the request.
// Reports whether any meter value changed.
func (s *Server) applyMeterSettings(req *SettingsUpdateRequest, cfg *config.Snapshot) (bool, error) {
	if req.MeterAttackMs == nil && req.MeterReleaseMs == nil && req.MeterHoldMs == nil &&
		req.MeterDecayPerSec == nil && req.MeterQuietBelowDB == nil &&
		req.MeterHotAboveDB == nil && req.MeterHysteresisDB == nil {
		return false, nil
	}

	meter := config.MeterConfig{
		AttackMs:     cfg.MeterAttackMs,
		ReleaseMs:    cfg.MeterReleaseMs,
		HoldMs:       cfg.MeterHoldMs,
		DecayPerSec:  cfg.MeterDecayPerSec,
		QuietBelowDB: cfg.MeterQuietBelowDB,
		HotAboveDB:   cfg.MeterHotAboveDB,
		ClipAtDB:     cfg.MeterClipAtDB,
		HysteresisDB: cfg.MeterHysteresisDB,
	}

	if req.MeterAttackMs != nil {
		meter.AttackMs = *req.MeterAttackMs
	}
	if req.MeterReleaseMs != nil {
		meter.ReleaseMs = *req.MeterReleaseMs
	}
	if req.MeterHoldMs != nil {
		meter.HoldMs = *req.MeterHoldMs
	}
	if req.MeterDecayPerSec != nil {
		meter.DecayPerSec = *req.MeterDecayPerSec
	}
	if req.MeterQuietBelowDB != nil {
		meter.QuietBelowDB = *req.MeterQuietBelowDB
	}
	if req.MeterHotAboveDB != nil {
		meter.HotAboveDB = *req.MeterHotAboveDB
	}
	if req.MeterHysteresisDB != nil {
		meter.HysteresisDB = *req.MeterHysteresisDB
	}

	return true, s.config.SetMeterConfig(meter)
}

// applySilenceSettings applies silence detection settings from the request.
func (s *Server) applySilenceSettings(req *SettingsUpdateRequest) error {
	if req.SilenceThreshold != nil {
		if err := s.config.SetSilenceThreshold(*req.SilenceThreshold); err != nil {
			return err
		}
	}

	if req.SilenceDurationMs != nil {
		if err := s.config.SetSilenceDurationMs(*req.SilenceDurationMs); err != nil {
			return err
		}
	}

	if req.SilenceRecoveryMs != nil {
		if err := s.config.SetSilenceRecoveryMs(*req.SilenceRecoveryMs); err != nil {
			return err
		}
	}

	return nil
}

// applyNotificationSettings applies notification settings from the request.
func (s *Server) applyNotificationSettings(req *SettingsUpdateRequest, cfg *config.Snapshot) error {
	if req.WebhookURL != nil {
		if err := s.config.SetWebhookURL(*req.WebhookURL); err != nil {
			return err
		}
	}

	if req.LogPath != nil {
		if err := s.config.SetLogPath(*req.LogPath); err != nil {
			return err
		}
	}

	return s.applyGraphSettings(req, cfg)
}

// applyGraphSettings applies Microsoft Graph email settings.
func (s *Server) applyGraphSettings(req *SettingsUpdateRequest, cfg *config.Snapshot) error {
	if req.GraphTenantID == nil && req.GraphClientID == nil && req.GraphClientSecret == nil &&
		req.GraphFromAddress == nil && req.GraphRecipients == nil {
		return nil
	}

	tenantID := cfg.GraphTenantID
	clientID := cfg.GraphClientID
	clientSecret := cfg.GraphClientSecret
	fromAddr := cfg.GraphFromAddress
	recipients := cfg.GraphRecipients
	if req.GraphTenantID != nil {
		tenantID = *req.GraphTenantID
	}
	if req.GraphClientID != nil {
		clientID = *req.GraphClientID
	}
	if req.GraphClientSecret != nil {
		clientSecret = *req.GraphClientSecret
	}
	if req.GraphFromAddress != nil {
		fromAddr = *req.GraphFromAddress
	}
	if req.GraphRecipients != nil {
		recipients = *req.GraphRecipients
	}

	if err := s.config.SetGraphConfig(tenantID, clientID, clientSecret, fromAddr, recipients); err != nil {
		return err
	}
	s.monitor.Notifier().InvalidateGraphClient()
	return nil
}

// monitorAction runs a monitor state change and writes the result.
func (s *Server) monitorAction(w http.ResponseWriter, r *http.Request, action func() error) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := action(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleAPIMonitorStart handles POST /api/monitor/start.
func (s *Server) handleAPIMonitorStart(w http.ResponseWriter, r *http.Request) {
	s.monitorAction(w, r, s.monitor.Start)
}

// handleAPIMonitorStop handles POST /api/monitor/stop.
func (s *Server) handleAPIMonitorStop(w http.ResponseWriter, r *http.Request) {
	s.monitorAction(w, r, s.monitor.Stop)
}

// handleAPIMonitorRestart handles POST /api/monitor/restart.
func (s *Server) handleAPIMonitorRestart(w http.ResponseWriter, r *http.Request) {
	s.monitorAction(w, r, s.monitor.Restart)
}

// handleAPIResetPeak handles POST /api/meter/reset-peak.
func (s *Server) handleAPIResetPeak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.monitor.ResetPeakHold()
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// NotificationTestRequest is the request body for notification test endpoints.
// Values override the saved config so the frontend can test unsaved settings.
type NotificationTestRequest struct {
	WebhookURL        string `json:"webhook_url"`
	LogPath           string `json:"log_path"`
	GraphTenantID     string `json:"graph_tenant_id"`
	GraphClientID     string `json:"graph_client_id"`
	GraphClientSecret string `json:"graph_client_secret"`
	GraphFromAddress  string `json:"graph_from_address"`
	GraphRecipients   string `json:"graph_recipients"`
}

func (s *Server) handleAPITestWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := parseJSON[NotificationTestRequest](s, w, r)
	if !ok {
		return
	}

	cfg := s.config.Snapshot()
	url := coalesce(req.WebhookURL, cfg.WebhookURL)

	if url == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "No webhook URL configured"})
		return
	}

	if err := notify.SendTestWebhook(url, cfg.StationName); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAPITestLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := parseJSON[NotificationTestRequest](s, w, r)
	if !ok {
		return
	}

	path := coalesce(req.LogPath, s.config.Snapshot().LogPath)

	if path == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "No log path configured"})
		return
	}

	if err := notify.WriteTestLog(path); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAPITestEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := parseJSON[NotificationTestRequest](s, w, r)
	if !ok {
		return
	}

	// Use request values or fall back to saved config
	cfg := s.config.Snapshot()
	tenantID := coalesce(req.GraphTenantID, cfg.GraphTenantID)
	clientID := coalesce(req.GraphClientID, cfg.GraphClientID)
	clientSecret := coalesce(req.GraphClientSecret, cfg.GraphClientSecret)
	fromAddress := coalesce(req.GraphFromAddress, cfg.GraphFromAddress)
	recipients := coalesce(req.GraphRecipients, cfg.GraphRecipients)

	if tenantID == "" || clientID == "" || clientSecret == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Email not fully configured"})
		return
	}

	graphCfg := &notify.GraphConfig{
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		FromAddress:  fromAddress,
		Recipients:   recipients,
	}

	if err := notify.SendTestEmail(graphCfg, cfg.StationName); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleAPIViewLog returns the alert log entries.
func (s *Server) handleAPIViewLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	logPath := s.config.LogPath()
	if logPath == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "Log file path not configured",
		})
		return
	}

	entries, err := server.ReadAlertLog(logPath, server.MaxLogEntries)
	if err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": entries,
		"path":    logPath,
	})
}
