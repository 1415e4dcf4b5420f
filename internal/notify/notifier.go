package notify

import (
	"fmt"
	"sync"

	"github.com/oszuidwest/zwfm-miccheck/internal/audio"
	"github.com/oszuidwest/zwfm-miccheck/internal/config"
	"github.com/oszuidwest/zwfm-miccheck/internal/util"
)

// AlertNotifier manages notifications for silence and sustained clipping.
type AlertNotifier struct {
	cfg *config.Config

	// mu protects the notification state fields below
	mu sync.Mutex

	// Track which notifications have been sent for the current silence period
	webhookSent bool
	emailSent   bool
	logSent     bool

	// Track which notifications have been sent for the current clip period
	clipWebhookSent bool
	clipEmailSent   bool
	clipLogSent     bool

	// Cached Graph client for email notifications
	graphClient *GraphClient
}

// NewAlertNotifier returns an AlertNotifier configured with the given config.
func NewAlertNotifier(cfg *config.Config) *AlertNotifier {
	return &AlertNotifier{cfg: cfg}
}

// InvalidateGraphClient clears the cached Graph client.
// Call this when Graph configuration changes.
func (n *AlertNotifier) InvalidateGraphClient() {
	n.mu.Lock()
	n.graphClient = nil
	n.mu.Unlock()
}

// getOrCreateGraphClient returns the cached Graph client, creating it if needed.
func (n *AlertNotifier) getOrCreateGraphClient(cfg *GraphConfig) (*GraphClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.graphClient != nil {
		return n.graphClient, nil
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	n.graphClient = client
	return client, nil
}

// HandleSilence processes a silence event and triggers notifications.
// levelL and levelR are the per-channel levels that produced the event.
func (n *AlertNotifier) HandleSilence(event audio.SilenceEvent, levelL, levelR float64) {
	if event.JustEntered {
		n.handleSilenceStart(levelL, levelR)
	}

	if event.JustRecovered {
		n.handleSilenceEnd(event.TotalDurationMs, levelL, levelR)
	}
}

// HandleClipStart triggers notifications when sustained clipping is confirmed.
func (n *AlertNotifier) HandleClipStart(levelL, levelR float64) {
	cfg := n.cfg.Snapshot()

	n.trySend(&n.clipWebhookSent, cfg.HasWebhook(), func() {
		util.LogNotifyResult(func() error { return SendClipWebhook(cfg.WebhookURL, levelL, levelR) }, "Clip webhook")
	})
	n.trySend(&n.clipEmailSent, cfg.HasGraph(), func() {
		util.LogNotifyResult(func() error { return n.sendClipEmail(&cfg, levelL, levelR) }, "Clip email")
	})
	n.trySend(&n.clipLogSent, cfg.HasLogPath(), func() {
		util.LogNotifyResult(func() error { return LogClipStart(cfg.LogPath, levelL, levelR) }, "Clip log")
	})
}

// HandleClipEnd triggers recovery notifications when a clip period ends.
func (n *AlertNotifier) HandleClipEnd(durationMs int64, levelL, levelR float64) {
	cfg := n.cfg.Snapshot()

	n.mu.Lock()
	sendWebhookRecovery := n.clipWebhookSent
	sendEmailRecovery := n.clipEmailSent
	sendLogRecovery := n.clipLogSent
	n.clipWebhookSent = false
	n.clipEmailSent = false
	n.clipLogSent = false
	n.mu.Unlock()

	if sendWebhookRecovery {
		go util.LogNotifyResult(func() error {
			return SendClipRecoveredWebhook(cfg.WebhookURL, durationMs, levelL, levelR)
		}, "Clip recovery webhook")
	}
	if sendEmailRecovery {
		go util.LogNotifyResult(func() error {
			return n.sendClipRecoveryEmail(&cfg, durationMs, levelL, levelR)
		}, "Clip recovery email")
	}
	if sendLogRecovery {
		go util.LogNotifyResult(func() error {
			return LogClipEnd(cfg.LogPath, durationMs, levelL, levelR)
		}, "Clip recovery log")
	}
}

// handleSilenceStart triggers notifications when silence is first detected.
func (n *AlertNotifier) handleSilenceStart(levelL, levelR float64) {
	cfg := n.cfg.Snapshot()

	n.trySend(&n.webhookSent, cfg.HasWebhook(), func() {
		util.LogNotifyResult(func() error {
			return SendSilenceWebhook(cfg.WebhookURL, levelL, levelR, cfg.SilenceThreshold)
		}, "Silence webhook")
	})
	n.trySend(&n.emailSent, cfg.HasGraph(), func() {
		util.LogNotifyResult(func() error {
			return n.sendSilenceEmail(&cfg, levelL, levelR)
		}, "Silence email")
	})
	n.trySend(&n.logSent, cfg.HasLogPath(), func() {
		util.LogNotifyResult(func() error {
			return LogSilenceStart(cfg.LogPath, levelL, levelR, cfg.SilenceThreshold)
		}, "Silence log")
	})
}

// trySend sends a notification if the condition is met and not already sent.
func (n *AlertNotifier) trySend(sent *bool, condition bool, sender func()) {
	n.mu.Lock()
	shouldSend := !*sent && condition
	if shouldSend {
		*sent = true
	}
	n.mu.Unlock()
	if shouldSend {
		go sender()
	}
}

// handleSilenceEnd triggers recovery notifications when silence ends.
func (n *AlertNotifier) handleSilenceEnd(totalDurationMs int64, levelL, levelR float64) {
	cfg := n.cfg.Snapshot()

	// Only send recovery notifications if we sent the corresponding start notification
	n.mu.Lock()
	sendWebhookRecovery := n.webhookSent
	sendEmailRecovery := n.emailSent
	sendLogRecovery := n.logSent
	// Reset notification state for next silence period
	n.webhookSent = false
	n.emailSent = false
	n.logSent = false
	n.mu.Unlock()

	if sendWebhookRecovery {
		go util.LogNotifyResult(func() error {
			return SendRecoveryWebhook(cfg.WebhookURL, totalDurationMs, levelL, levelR, cfg.SilenceThreshold)
		}, "Recovery webhook")
	}
	if sendEmailRecovery {
		go util.LogNotifyResult(func() error {
			return n.sendRecoveryEmail(&cfg, totalDurationMs, levelL, levelR)
		}, "Recovery email")
	}
	if sendLogRecovery {
		go util.LogNotifyResult(func() error {
			return LogSilenceEnd(cfg.LogPath, totalDurationMs, levelL, levelR, cfg.SilenceThreshold)
		}, "Recovery log")
	}
}

// Reset clears the notification state.
func (n *AlertNotifier) Reset() {
	n.mu.Lock()
	n.webhookSent = false
	n.emailSent = false
	n.logSent = false
	n.clipWebhookSent = false
	n.clipEmailSent = false
	n.clipLogSent = false
	n.mu.Unlock()
}

// BuildGraphConfig creates a GraphConfig from the config snapshot.
func BuildGraphConfig(cfg *config.Snapshot) *GraphConfig {
	return &GraphConfig{
		TenantID:     cfg.GraphTenantID,
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		FromAddress:  cfg.GraphFromAddress,
		Recipients:   cfg.GraphRecipients,
	}
}

// sendEmail handles the common email sending infrastructure.
func (n *AlertNotifier) sendEmail(cfg *GraphConfig, subject, body string) error {
	if !IsConfigured(cfg) {
		return nil
	}

	client, err := n.getOrCreateGraphClient(cfg)
	if err != nil {
		return util.WrapError("create Graph client", err)
	}

	recipients := ParseRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	if err := client.SendMail(recipients, subject, body); err != nil {
		return util.WrapError("send email via Graph", err)
	}

	return nil
}

func (n *AlertNotifier) sendSilenceEmail(cfg *config.Snapshot, levelL, levelR float64) error {
	subject := "[ALERT] Silence Detected - " + cfg.StationName
	body := fmt.Sprintf(
		"Silence detected on the mic check input.\n\n"+
			"Level:     L %.1f dB / R %.1f dB\n"+
			"Threshold: %.1f dB\n"+
			"Time:      %s\n\n"+
			"Silence is ongoing. Please check the audio source.",
		levelL, levelR, cfg.SilenceThreshold, util.HumanTime(),
	)
	return n.sendEmail(BuildGraphConfig(cfg), subject, body)
}

func (n *AlertNotifier) sendRecoveryEmail(cfg *config.Snapshot, durationMs int64, levelL, levelR float64) error {
	subject := "[OK] Audio Recovered - " + cfg.StationName
	body := fmt.Sprintf(
		"Audio recovered on the mic check input.\n\n"+
			"Level:          L %.1f dB / R %.1f dB\n"+
			"Silence lasted: %s\n"+
			"Threshold:      %.1f dB\n"+
			"Time:           %s",
		levelL, levelR, util.FormatDuration(durationMs), cfg.SilenceThreshold, util.HumanTime(),
	)
	return n.sendEmail(BuildGraphConfig(cfg), subject, body)
}

func (n *AlertNotifier) sendClipEmail(cfg *config.Snapshot, levelL, levelR float64) error {
	subject := "[ALERT] Clipping Detected - " + cfg.StationName
	body := fmt.Sprintf(
		"Sustained clipping detected on the mic check input.\n\n"+
			"Level: L %.1f dB / R %.1f dB\n"+
			"Time:  %s\n\n"+
			"Clipping is ongoing. Please lower the input gain.",
		levelL, levelR, util.HumanTime(),
	)
	return n.sendEmail(BuildGraphConfig(cfg), subject, body)
}

func (n *AlertNotifier) sendClipRecoveryEmail(cfg *config.Snapshot, durationMs int64, levelL, levelR float64) error {
	subject := "[OK] Levels Recovered - " + cfg.StationName
	body := fmt.Sprintf(
		"Input levels dropped back out of the clip zone.\n\n"+
			"Level:           L %.1f dB / R %.1f dB\n"+
			"Clipping lasted: %s\n"+
			"Time:            %s",
		levelL, levelR, util.FormatDuration(durationMs), util.HumanTime(),
	)
	return n.sendEmail(BuildGraphConfig(cfg), subject, body)
}
