package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/oszuidwest/zwfm-miccheck/internal/types"
)

// runTest executes the test operation for the given test type.
func (h *CommandHandler) runTest(testType string) error {
	switch testType {
	case "test_webhook":
		return h.monitor.TriggerTestWebhook()
	case "test_log":
		return h.monitor.TriggerTestLog()
	case "test_email":
		return h.monitor.TriggerTestEmail()
	default:
		return fmt.Errorf("unknown test type: %s", testType)
	}
}

// handleTest runs a notification test asynchronously and reports the result.
func (h *CommandHandler) handleTest(send chan<- any, testType string) {
	go func() {
		result := types.WSTestResult{
			Type:     "test_result",
			TestType: testType,
			Success:  true,
		}

		if err := h.runTest(testType); err != nil {
			slog.Error("notification test failed", "test", testType, "error", err)
			result.Success = false
			result.Error = err.Error()
		}

		trySend(send, "test_result", result)
	}()
}

// handleViewAlertLog sends the most recent alert log entries to the client.
func (h *CommandHandler) handleViewAlertLog(send chan<- any) {
	logPath := h.cfg.LogPath()
	if logPath == "" {
		SendData(send, types.WSAlertLogResult{
			Type:  "alert_log",
			Error: "log file path not configured",
		})
		return
	}

	entries, err := ReadAlertLog(logPath, MaxLogEntries)
	if err != nil {
		slog.Error("failed to read alert log", "path", logPath, "error", err)
		SendData(send, types.WSAlertLogResult{
			Type:  "alert_log",
			Error: err.Error(),
		})
		return
	}

	SendData(send, types.WSAlertLogResult{
		Type:    "alert_log",
		Entries: entries,
	})
}

// ReadAlertLog returns up to limit entries from the log file, newest first.
// Lines that fail to parse are skipped.
func ReadAlertLog(path string, limit int) ([]types.AlertLogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.AlertLogEntry{}, nil
		}
		return nil, err
	}

	entries := make([]types.AlertLogEntry, 0, limit)
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry types.AlertLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Warn("failed to parse alert log entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	// Keep the last entries, newest first
	start := max(0, len(entries)-limit)
	entries = entries[start:]
	slices.Reverse(entries)

	return entries, nil
}
