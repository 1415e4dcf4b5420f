package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// encodeStereo packs interleaved left/right int16 samples as S16LE bytes.
func encodeStereo(left, right []int16) []byte {
	buf := make([]byte, 0, len(left)*BytesPerFrame)
	for i := range left {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(left[i]))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(right[i]))
	}
	return buf
}

func repeat(v int16, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestBlockStatsLevels(t *testing.T) {
	tests := []struct {
		name     string
		left     []int16
		right    []int16
		wantRMSL float64
		wantRMSR float64
		wantClip bool
	}{
		{
			name:     "silence on both channels",
			left:     repeat(0, 64),
			right:    repeat(0, 64),
			wantRMSL: MinDB,
			wantRMSR: MinDB,
		},
		{
			name:     "full scale left only",
			left:     repeat(32767, 64),
			right:    repeat(0, 64),
			wantRMSL: 20 * math.Log10(32767.0/MaxSampleValue),
			wantRMSR: MinDB,
			wantClip: true,
		},
		{
			name:     "half scale both",
			left:     repeat(16384, 64),
			right:    repeat(-16384, 64),
			wantRMSL: 20 * math.Log10(16384.0/MaxSampleValue),
			wantRMSR: 20 * math.Log10(16384.0/MaxSampleValue),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stats BlockStats
			buf := encodeStereo(tt.left, tt.right)
			stats.AddS16LE(buf, len(buf))

			levels := stats.Levels()
			if math.Abs(levels.RMSLeft-tt.wantRMSL) > 0.01 {
				t.Errorf("RMSLeft = %.3f, want %.3f", levels.RMSLeft, tt.wantRMSL)
			}
			if math.Abs(levels.RMSRight-tt.wantRMSR) > 0.01 {
				t.Errorf("RMSRight = %.3f, want %.3f", levels.RMSRight, tt.wantRMSR)
			}
			if levels.Clipped() != tt.wantClip {
				t.Errorf("Clipped() = %v, want %v", levels.Clipped(), tt.wantClip)
			}
		})
	}
}

func TestBlockStatsPeakAndMax(t *testing.T) {
	var stats BlockStats
	buf := encodeStereo([]int16{100, -16384, 50}, []int16{-8192, 30, 20})
	stats.AddS16LE(buf, len(buf))

	levels := stats.Levels()
	wantPeakL := 20 * math.Log10(16384.0/MaxSampleValue)
	if math.Abs(levels.PeakLeft-wantPeakL) > 0.01 {
		t.Errorf("PeakLeft = %.3f, want %.3f", levels.PeakLeft, wantPeakL)
	}
	if levels.PeakMax() != levels.PeakLeft {
		t.Errorf("PeakMax = %.3f, want the hotter left channel %.3f", levels.PeakMax(), levels.PeakLeft)
	}
	if levels.RMSMax() != levels.RMSLeft {
		t.Errorf("RMSMax = %.3f, want the hotter left channel %.3f", levels.RMSMax(), levels.RMSLeft)
	}
}

func TestBlockStatsReset(t *testing.T) {
	var stats BlockStats
	buf := encodeStereo(repeat(1000, 8), repeat(1000, 8))
	stats.AddS16LE(buf, len(buf))
	if stats.Frames() != 8 {
		t.Fatalf("Frames = %d, want 8", stats.Frames())
	}

	stats.Reset()
	if stats.Frames() != 0 {
		t.Errorf("Frames = %d after Reset, want 0", stats.Frames())
	}
	if got := stats.Levels().RMSLeft; got != MinDB {
		t.Errorf("RMSLeft = %.2f after Reset, want %.2f", got, MinDB)
	}
}

func TestBlockStatsIgnoresPartialFrame(t *testing.T) {
	var stats BlockStats
	buf := encodeStereo(repeat(1000, 2), repeat(1000, 2))
	stats.AddS16LE(buf, len(buf)-1) // truncated final frame
	if stats.Frames() != 1 {
		t.Errorf("Frames = %d with a truncated buffer, want 1", stats.Frames())
	}
}

func TestSilenceDetector(t *testing.T) {
	cfg := SilenceConfig{ThresholdDB: -40, DurationMs: 1000, RecoveryMs: 500}
	d := NewSilenceDetector()
	now := time.Unix(100, 0)

	step := func(level float64, advance time.Duration) SilenceEvent {
		now = now.Add(advance)
		return d.Update(level, cfg, now)
	}

	if ev := step(-20, 0); ev.InSilence {
		t.Fatal("signal above threshold reported as silence")
	}

	// Silence must persist for DurationMs before confirming.
	if ev := step(-55, 100*time.Millisecond); ev.InSilence {
		t.Fatal("silence confirmed before the duration threshold")
	}
	ev := step(-55, 1100*time.Millisecond)
	if !ev.InSilence || !ev.JustEntered {
		t.Fatalf("event = %+v, want confirmed silence with JustEntered", ev)
	}

	// A short blip of signal does not recover.
	if ev := step(-10, 100*time.Millisecond); !ev.InSilence || ev.JustRecovered {
		t.Fatalf("event = %+v, want still in silence during recovery debounce", ev)
	}

	// Sustained signal recovers and reports the total duration.
	ev = step(-10, 600*time.Millisecond)
	if !ev.JustRecovered {
		t.Fatalf("event = %+v, want JustRecovered after sustained signal", ev)
	}
	if ev.TotalDurationMs < 1000 {
		t.Errorf("TotalDurationMs = %d, want at least the confirmed silence length", ev.TotalDurationMs)
	}
	if ev2 := step(-10, 100*time.Millisecond); ev2.InSilence {
		t.Error("detector still in silence after recovery")
	}
}

func TestSilenceDetectorReset(t *testing.T) {
	cfg := SilenceConfig{ThresholdDB: -40, DurationMs: 100, RecoveryMs: 100}
	d := NewSilenceDetector()
	now := time.Unix(100, 0)

	d.Update(-55, cfg, now)
	d.Update(-55, cfg, now.Add(200*time.Millisecond))
	d.Reset()

	ev := d.Update(-55, cfg, now.Add(250*time.Millisecond))
	if ev.InSilence {
		t.Error("silence confirmed immediately after Reset, want debounce to restart")
	}
}

func TestCaptureAvailabilityFollowsPlatformBackend(t *testing.T) {
	cfg := getPlatformConfig()

	if cfg.UsesFFmpeg {
		if CaptureAvailable("") {
			t.Error("capture reported available without a resolved ffmpeg path")
		}
		if !CaptureAvailable("/opt/ffmpeg/bin/ffmpeg") {
			t.Error("capture not available despite a resolved ffmpeg path")
		}
		return
	}

	// Non-FFmpeg backends probe their own command; the ffmpeg path must
	// not influence the result either way.
	if CaptureAvailable("") != CaptureAvailable("/opt/ffmpeg/bin/ffmpeg") {
		t.Errorf("availability of the %s backend depends on the ffmpeg path", cfg.Command)
	}
}
