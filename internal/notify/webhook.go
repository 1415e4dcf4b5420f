package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-miccheck/internal/util"
)

// WebhookPayload represents the data sent to webhook endpoints.
type WebhookPayload struct {
	Event        string  `json:"event"`
	DurationMs   int64   `json:"duration_ms,omitempty"`
	LevelLeftDB  float64 `json:"level_left_db,omitempty"`
	LevelRightDB float64 `json:"level_right_db,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
	Message      string  `json:"message,omitempty"`
	Timestamp    string  `json:"timestamp"`
}

// SendSilenceWebhook notifies the configured webhook of confirmed silence.
func SendSilenceWebhook(webhookURL string, levelL, levelR, threshold float64) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:        "silence_detected",
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
		Threshold:    threshold,
		Timestamp:    timestampUTC(),
	})
}

// SendRecoveryWebhook notifies the configured webhook that audio returned.
func SendRecoveryWebhook(webhookURL string, durationMs int64, levelL, levelR, threshold float64) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:        "silence_recovered",
		DurationMs:   durationMs,
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
		Threshold:    threshold,
		Timestamp:    timestampUTC(),
	})
}

// SendClipWebhook notifies the configured webhook of sustained clipping.
func SendClipWebhook(webhookURL string, levelL, levelR float64) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:        "clip_detected",
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
		Timestamp:    timestampUTC(),
	})
}

// SendClipRecoveredWebhook notifies the configured webhook that levels dropped
// back out of the clip zone.
func SendClipRecoveredWebhook(webhookURL string, durationMs int64, levelL, levelR float64) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:        "clip_recovered",
		DurationMs:   durationMs,
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
		Timestamp:    timestampUTC(),
	})
}

// SendTestWebhook sends a test webhook notification.
func SendTestWebhook(webhookURL, stationName string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from " + stationName,
		Timestamp: timestampUTC(),
	})
}

// sendWebhook delivers a notification to the configured webhook endpoint.
func sendWebhook(webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
