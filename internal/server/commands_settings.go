package server

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-miccheck/internal/config"
	"github.com/oszuidwest/zwfm-miccheck/internal/types"
)

// --- Monitor control handlers ---

// handleMonitorStart processes a monitor/start command.
func (h *CommandHandler) handleMonitorStart(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		return nil, h.monitor.Start()
	})
}

// handleMonitorStop processes a monitor/stop command.
func (h *CommandHandler) handleMonitorStop(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		return nil, h.monitor.Stop()
	})
}

// handleMonitorRestart processes a monitor/restart command.
func (h *CommandHandler) handleMonitorRestart(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		return nil, h.monitor.Restart()
	})
}

// --- Audio handlers ---

// handleAudioUpdate processes an audio/update command.
func (h *CommandHandler) handleAudioUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *AudioUpdateRequest) error {
		if req.Input == "" {
			return nil // No change requested
		}

		slog.Info("audio/update: changing audio input", "input", req.Input)
		if err := h.cfg.SetAudioInput(req.Input); err != nil {
			return err
		}

		// Start/restart monitor if capture is available
		if h.captureAvailable {
			go func() {
				var err error
				switch h.monitor.State() {
				case types.StateRunning:
					err = h.monitor.Restart()
				case types.StateStopped:
					err = h.monitor.Start()
				}
				if err != nil {
					slog.Error("audio/update: monitor state change failed", "error", err)
				}
			}()
		}

		return nil
	})
}

// --- Meter handlers ---

// handleMeterUpdate processes a meter/update command. Fields not supplied
// keep their current values; the metering session is rebuilt afterwards.
func (h *CommandHandler) handleMeterUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *MeterUpdateRequest) error {
		snap := h.cfg.Snapshot()

		meter := config.MeterConfig{
			AttackMs:     snap.MeterAttackMs,
			ReleaseMs:    snap.MeterReleaseMs,
			HoldMs:       snap.MeterHoldMs,
			DecayPerSec:  snap.MeterDecayPerSec,
			QuietBelowDB: snap.MeterQuietBelowDB,
			HotAboveDB:   snap.MeterHotAboveDB,
			ClipAtDB:     snap.MeterClipAtDB,
			HysteresisDB: snap.MeterHysteresisDB,
		}

		if req.AttackMs != nil {
			meter.AttackMs = *req.AttackMs
		}
		if req.ReleaseMs != nil {
			meter.ReleaseMs = *req.ReleaseMs
		}
		if req.HoldMs != nil {
			meter.HoldMs = *req.HoldMs
		}
		if req.DecayPerSec != nil {
			meter.DecayPerSec = *req.DecayPerSec
		}
		if req.QuietBelowDB != nil {
			meter.QuietBelowDB = *req.QuietBelowDB
		}
		if req.HotAboveDB != nil {
			meter.HotAboveDB = *req.HotAboveDB
		}
		if req.HysteresisDB != nil {
			meter.HysteresisDB = *req.HysteresisDB
		}

		if err := h.cfg.SetMeterConfig(meter); err != nil {
			return err
		}

		h.monitor.ReloadMeterConfig()
		return nil
	})
}

// handleMeterResetPeak processes a meter/reset-peak command.
func (h *CommandHandler) handleMeterResetPeak(cmd WSCommand, send chan<- any) {
	h.monitor.ResetPeakHold()
	SendSuccess(send, cmd.Type, nil)
}

// --- Silence detection handlers ---

// handleSilenceUpdate processes a silence/update command.
func (h *CommandHandler) handleSilenceUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *SilenceUpdateRequest) error {
		if req.ThresholdDB != nil {
			if err := h.cfg.SetSilenceThreshold(*req.ThresholdDB); err != nil {
				return err
			}
		}
		if req.DurationMs != nil {
			if err := h.cfg.SetSilenceDurationMs(*req.DurationMs); err != nil {
				return err
			}
		}
		if req.RecoveryMs != nil {
			if err := h.cfg.SetSilenceRecoveryMs(*req.RecoveryMs); err != nil {
				return err
			}
		}

		// The pipeline snapshots silence config per block, changes apply
		// on the next analysis block without a restart.
		return nil
	})
}

// --- Notification handlers ---

// handleWebhookUpdate processes a notifications/webhook/update command.
func (h *CommandHandler) handleWebhookUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *WebhookUpdateRequest) error {
		return h.cfg.SetWebhookURL(req.URL)
	})
}

// handleLogUpdate processes a notifications/log/update command.
func (h *CommandHandler) handleLogUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *LogUpdateRequest) error {
		return h.cfg.SetLogPath(req.Path)
	})
}

// handleEmailUpdate processes a notifications/email/update command.
func (h *CommandHandler) handleEmailUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *EmailUpdateRequest) error {
		if err := h.cfg.SetGraphConfig(
			req.TenantID,
			req.ClientID,
			req.ClientSecret,
			req.FromAddress,
			req.Recipients,
		); err != nil {
			return err
		}
		h.monitor.Notifier().InvalidateGraphClient()
		return nil
	})
}

// --- Config handlers ---

// handleConfigGet processes a config/get command. Secrets are redacted.
func (h *CommandHandler) handleConfigGet(send chan<- any) {
	snap := h.cfg.Snapshot()

	SendData(send, types.WSConfigResponse{
		Type: "config",
		Config: map[string]any{
			"audio": map[string]any{
				"input": snap.AudioInput,
			},
			"meter": snap.MeterSettings(),
			"silence_detection": map[string]any{
				"threshold_db": snap.SilenceThreshold,
				"duration_ms":  snap.SilenceDurationMs,
				"recovery_ms":  snap.SilenceRecoveryMs,
			},
			"notifications": map[string]any{
				"webhook": map[string]any{"url": snap.WebhookURL},
				"log":     map[string]any{"path": snap.LogPath},
				"email": map[string]any{
					"tenant_id":    snap.GraphTenantID,
					"client_id":    snap.GraphClientID,
					"has_secret":   snap.GraphClientSecret != "",
					"from_address": snap.GraphFromAddress,
					"recipients":   snap.GraphRecipients,
				},
			},
		},
	})
}
