package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "config.json"))
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	cfg := newTestConfig(t)

	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(cfg.filePath); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}

	snap := cfg.Snapshot()
	if snap.WebPort != DefaultWebPort {
		t.Errorf("WebPort = %d, want %d", snap.WebPort, DefaultWebPort)
	}
	if snap.StationName != DefaultStationName {
		t.Errorf("StationName = %q, want %q", snap.StationName, DefaultStationName)
	}
}

func TestSnapshotMeterDefaults(t *testing.T) {
	cfg := newTestConfig(t)

	snap := cfg.Snapshot()
	if snap.MeterAttackMs != DefaultMeterAttackMs {
		t.Errorf("MeterAttackMs = %d, want %d", snap.MeterAttackMs, DefaultMeterAttackMs)
	}
	if snap.MeterReleaseMs != DefaultMeterReleaseMs {
		t.Errorf("MeterReleaseMs = %d, want %d", snap.MeterReleaseMs, DefaultMeterReleaseMs)
	}
	if snap.MeterHoldMs != DefaultMeterHoldMs {
		t.Errorf("MeterHoldMs = %d, want %d", snap.MeterHoldMs, DefaultMeterHoldMs)
	}
	if snap.MeterQuietBelowDB != DefaultQuietBelowDB {
		t.Errorf("MeterQuietBelowDB = %.1f, want %.1f", snap.MeterQuietBelowDB, DefaultQuietBelowDB)
	}
	if snap.MeterClipAtDB != 0 {
		t.Errorf("MeterClipAtDB = %.1f, want 0 (full scale)", snap.MeterClipAtDB)
	}
}

func TestMeteringConfigConversion(t *testing.T) {
	cfg := newTestConfig(t)
	if err := cfg.SetMeterConfig(MeterConfig{
		AttackMs:     100,
		ReleaseMs:    400,
		HoldMs:       2000,
		DecayPerSec:  3.5,
		QuietBelowDB: -30,
		HotAboveDB:   -8,
		HysteresisDB: 2,
	}); err != nil {
		t.Fatalf("SetMeterConfig() error = %v", err)
	}

	snap := cfg.Snapshot()

	ms := snap.MeterSettings()
	if ms.AttackMs != 100 || ms.ReleaseMs != 400 {
		t.Errorf("ballistics = %d/%d ms, want 100/400", ms.AttackMs, ms.ReleaseMs)
	}
	if ms.HoldMs != 2000 || ms.DecayPerSec != 3.5 {
		t.Errorf("peak hold = %dms decay %.1f, want 2000ms decay 3.5", ms.HoldMs, ms.DecayPerSec)
	}

	mc := snap.MeteringConfig()
	if mc.AttackTau != 100*time.Millisecond || mc.ReleaseTau != 400*time.Millisecond {
		t.Errorf("taus = %v/%v, want 100ms/400ms", mc.AttackTau, mc.ReleaseTau)
	}
	if mc.HoldDuration != 2*time.Second || mc.DecayRate != 3.5 {
		t.Errorf("peak hold = %v decay %.1f, want 2s decay 3.5", mc.HoldDuration, mc.DecayRate)
	}
	if mc.QuietBelowDB != -30 || mc.HotAboveDB != -8 || mc.HysteresisDB != 2 {
		t.Errorf("zones = %.1f/%.1f hyst %.1f, want -30/-8 hyst 2", mc.QuietBelowDB, mc.HotAboveDB, mc.HysteresisDB)
	}
}

func TestSetMeterConfigRejectsBadZoneOrdering(t *testing.T) {
	cfg := newTestConfig(t)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	err := cfg.SetMeterConfig(MeterConfig{QuietBelowDB: -5, HotAboveDB: -6})
	if err == nil {
		t.Fatal("SetMeterConfig accepted quiet_below_db above hot_above_db")
	}

	// The bad ordering must not have been written: a fresh load of the
	// same file has to succeed.
	reloaded := New(cfg.filePath)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() after rejected update error = %v", err)
	}
}

func TestSettersPersistAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := cfg.SetAudioInput("hw:1,0"); err != nil {
		t.Fatalf("SetAudioInput() error = %v", err)
	}
	if err := cfg.SetSilenceThreshold(-42); err != nil {
		t.Fatalf("SetSilenceThreshold() error = %v", err)
	}
	if err := cfg.SetWebhookURL("https://example.com/hook"); err != nil {
		t.Fatalf("SetWebhookURL() error = %v", err)
	}

	reloaded := New(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	snap := reloaded.Snapshot()
	if snap.AudioInput != "hw:1,0" {
		t.Errorf("AudioInput = %q, want hw:1,0", snap.AudioInput)
	}
	if snap.SilenceThreshold != -42 {
		t.Errorf("SilenceThreshold = %.1f, want -42", snap.SilenceThreshold)
	}
	if snap.WebhookURL != "https://example.com/hook" {
		t.Errorf("WebhookURL = %q", snap.WebhookURL)
	}
}

func TestLoadRejectsBadZoneOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	bad := `{"meter": {"quiet_below_db": -5, "hot_above_db": -20}}`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := New(path)
	if err := cfg.Load(); err == nil {
		t.Error("Load() = nil, want zone ordering error")
	}
}

func TestLoadRejectsBadStationColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	bad := `{"web": {"color_light": "magenta"}}`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := New(path)
	if err := cfg.Load(); err == nil {
		t.Error("Load() = nil, want color format error")
	}
}

func TestSetLogPathRejectsTraversal(t *testing.T) {
	cfg := newTestConfig(t)

	if err := cfg.SetLogPath("../../etc/alerts.log"); err == nil {
		t.Error("SetLogPath() = nil, want path traversal error")
	}

	// Empty path clears file logging
	if err := cfg.SetLogPath(""); err != nil {
		t.Errorf("SetLogPath(\"\") error = %v", err)
	}
}
