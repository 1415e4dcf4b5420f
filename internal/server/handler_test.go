package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oszuidwest/zwfm-miccheck/internal/notify"
)

func decodeCommand[T any](t *testing.T, data string) (T, bool) {
	t.Helper()
	cmd := WSCommand{Type: "test/update", Data: json.RawMessage(data)}
	send := make(chan any, 4)
	var req T
	ok := DecodeAndValidate(cmd, send, &req)
	return req, ok
}

func TestMeterUpdateValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"valid full", `{"attack_ms": 250, "release_ms": 800, "hold_ms": 1500, "decay_per_sec": 2.0}`, true},
		{"partial update", `{"hold_ms": 3000}`, true},
		{"empty object", `{}`, true},
		{"attack too fast", `{"attack_ms": 5}`, false},
		{"release too slow", `{"release_ms": 20000}`, false},
		{"zero decay", `{"decay_per_sec": 0}`, false},
		{"zone above full scale", `{"hot_above_db": 3}`, false},
		{"hysteresis too wide", `{"hysteresis_db": 12}`, false},
		{"malformed json", `{"attack_ms":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := decodeCommand[MeterUpdateRequest](t, tt.data); ok != tt.ok {
				t.Errorf("DecodeAndValidate(%s) = %v, want %v", tt.data, ok, tt.ok)
			}
		})
	}
}

func TestMeterUpdatePartialFieldsStayNil(t *testing.T) {
	req, ok := decodeCommand[MeterUpdateRequest](t, `{"hold_ms": 2500}`)
	if !ok {
		t.Fatal("DecodeAndValidate failed")
	}
	if req.HoldMs == nil || *req.HoldMs != 2500 {
		t.Errorf("HoldMs = %v, want 2500", req.HoldMs)
	}
	if req.AttackMs != nil || req.QuietBelowDB != nil {
		t.Error("omitted fields should remain nil")
	}
}

func TestSilenceUpdateValidation(t *testing.T) {
	if _, ok := decodeCommand[SilenceUpdateRequest](t, `{"threshold_db": -40, "duration_ms": 15000}`); !ok {
		t.Error("valid silence update rejected")
	}
	if _, ok := decodeCommand[SilenceUpdateRequest](t, `{"threshold_db": 5}`); ok {
		t.Error("threshold above full scale accepted")
	}
	if _, ok := decodeCommand[SilenceUpdateRequest](t, `{"duration_ms": 100}`); ok {
		t.Error("sub-500ms duration accepted")
	}
}

func TestValidationErrorUsesJSONFieldNames(t *testing.T) {
	cmd := WSCommand{Type: "meter/update", Data: json.RawMessage(`{"attack_ms": 1}`)}
	send := make(chan any, 4)
	var req MeterUpdateRequest
	if DecodeAndValidate(cmd, send, &req) {
		t.Fatal("expected validation failure")
	}

	msg := <-send
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "attack_ms") {
		t.Errorf("validation error %s does not reference the JSON field name", raw)
	}
}

func TestReadAlertLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")

	for range 3 {
		if err := notify.LogClipStart(path, 0.1, 0.2); err != nil {
			t.Fatal(err)
		}
	}
	if err := notify.LogClipEnd(path, 4000, -5, -5); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadAlertLog(path, 2)
	if err != nil {
		t.Fatalf("ReadAlertLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (capped)", len(entries))
	}
	// Newest first
	if entries[0].Event != "clip_end" {
		t.Errorf("entries[0].Event = %q, want clip_end", entries[0].Event)
	}
	if entries[1].Event != "clip_start" {
		t.Errorf("entries[1].Event = %q, want clip_start", entries[1].Event)
	}
}

func TestReadAlertLogMissingFile(t *testing.T) {
	entries, err := ReadAlertLog(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil {
		t.Fatalf("ReadAlertLog(missing) error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestReadAlertLogSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	content := `{"timestamp":"2026-08-30T10:00:00Z","event":"test"}
not json at all
{"timestamp":"2026-08-30T11:00:00Z","event":"silence_start"}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadAlertLog(path, 10)
	if err != nil {
		t.Fatalf("ReadAlertLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Event != "silence_start" {
		t.Errorf("entries[0].Event = %q, want silence_start (newest first)", entries[0].Event)
	}
}
