package notify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/oszuidwest/zwfm-miccheck/internal/types"
	"github.com/oszuidwest/zwfm-miccheck/internal/util"
)

// LogSilenceStart records the beginning of a silence event.
func LogSilenceStart(logPath string, levelL, levelR, threshold float64) error {
	return appendLogEntry(logPath, &types.AlertLogEntry{
		Timestamp:    timestampUTC(),
		Event:        "silence_start",
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
		ThresholdDB:  threshold,
	})
}

// LogSilenceEnd records the end of a silence event.
func LogSilenceEnd(logPath string, durationMs int64, levelL, levelR, threshold float64) error {
	return appendLogEntry(logPath, &types.AlertLogEntry{
		Timestamp:    timestampUTC(),
		Event:        "silence_end",
		DurationMs:   durationMs,
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
		ThresholdDB:  threshold,
	})
}

// LogClipStart records the beginning of a sustained clipping event.
func LogClipStart(logPath string, levelL, levelR float64) error {
	return appendLogEntry(logPath, &types.AlertLogEntry{
		Timestamp:    timestampUTC(),
		Event:        "clip_start",
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
	})
}

// LogClipEnd records the end of a sustained clipping event.
func LogClipEnd(logPath string, durationMs int64, levelL, levelR float64) error {
	return appendLogEntry(logPath, &types.AlertLogEntry{
		Timestamp:    timestampUTC(),
		Event:        "clip_end",
		DurationMs:   durationMs,
		LevelLeftDB:  levelL,
		LevelRightDB: levelR,
	})
}

// WriteTestLog writes a test log entry.
func WriteTestLog(logPath string) error {
	if logPath == "" {
		return fmt.Errorf("log file path not configured")
	}

	return appendLogEntry(logPath, &types.AlertLogEntry{
		Timestamp: timestampUTC(),
		Event:     "test",
	})
}

// appendLogEntry appends a log entry to the file.
func appendLogEntry(logPath string, entry *types.AlertLogEntry) error {
	if !util.IsConfigured(logPath) {
		return nil
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open log file", err)
	}
	defer util.SafeCloseFunc(f, "log file")()

	if _, err := f.Write(jsonData); err != nil {
		return util.WrapError("write log entry", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		return util.WrapError("write newline", err)
	}

	return nil
}
