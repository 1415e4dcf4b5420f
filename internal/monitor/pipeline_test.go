package monitor

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-miccheck/internal/audio"
	"github.com/oszuidwest/zwfm-miccheck/internal/config"
	"github.com/oszuidwest/zwfm-miccheck/internal/metering"
	"github.com/oszuidwest/zwfm-miccheck/internal/notify"
)

// sineBlock returns n stereo frames of s16le PCM at the given amplitude.
func sineBlock(frames int, amplitude float64) []byte {
	buf := make([]byte, frames*4)
	for i := range frames {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/48000)
		s := int16(v * 32767)
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(s))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(s))
	}
	return buf
}

func newTestPipeline(t *testing.T) (*Pipeline, *metering.PushSource, *[]audio.Levels) {
	t.Helper()
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	source := metering.NewPushSource()
	notifier := notify.NewAlertNotifier(cfg)
	detector := audio.NewSilenceDetector()

	var seen []audio.Levels
	p := NewPipeline(cfg, detector, notifier, source, func(levels audio.Levels, _ audio.SilenceEvent) {
		seen = append(seen, levels)
	})
	return p, source, &seen
}

func TestPipelineEmitsOneReadingPerBlock(t *testing.T) {
	p, source, seen := newTestPipeline(t)

	readings := make(chan metering.Reading, 8)
	source.Start(func(r metering.Reading) { readings <- r })
	defer source.Stop()

	// Half a block produces nothing.
	half := sineBlock(LevelUpdateFrames/2, 0.5)
	p.ProcessSamples(half, len(half))

	select {
	case r := <-readings:
		t.Fatalf("got reading %+v before the block was full", r)
	case <-time.After(50 * time.Millisecond):
	}

	// Completing the block emits exactly one reading.
	p.ProcessSamples(half, len(half))

	select {
	case r := <-readings:
		// Half-scale sine: RMS is roughly -9 dB, peak roughly -6 dB.
		if r.RMSDB > -6 || r.RMSDB < -12 {
			t.Errorf("RMSDB = %.1f, want about -9", r.RMSDB)
		}
		if r.PeakDB > -4 || r.PeakDB < -8 {
			t.Errorf("PeakDB = %.1f, want about -6", r.PeakDB)
		}
	case <-time.After(time.Second):
		t.Fatal("no reading after completing the block")
	}

	if len(*seen) != 1 {
		t.Errorf("callback ran %d times, want 1", len(*seen))
	}
}

func TestPipelineBlockCarriesAcrossCalls(t *testing.T) {
	p, source, _ := newTestPipeline(t)

	readings := make(chan metering.Reading, 8)
	source.Start(func(r metering.Reading) { readings <- r })
	defer source.Stop()

	// Feed three blocks worth of audio in odd-sized chunks.
	data := sineBlock(LevelUpdateFrames*3, 0.25)
	chunk := 1000
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		p.ProcessSamples(data[off:end], end-off)
	}

	got := 0
	timeout := time.After(time.Second)
	for got < 3 {
		select {
		case <-readings:
			got++
		case <-timeout:
			t.Fatalf("got %d readings, want 3", got)
		}
	}
}

func TestPipelineCarriesPartialFrames(t *testing.T) {
	p, source, _ := newTestPipeline(t)

	readings := make(chan metering.Reading, 8)
	source.Start(func(r metering.Reading) { readings <- r })
	defer source.Stop()

	// Chunk size not divisible by the frame size: frames straddle reads
	// and the trailing bytes must survive into the next call.
	data := sineBlock(LevelUpdateFrames*2, 0.25)
	chunk := 1001
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		p.ProcessSamples(data[off:end], end-off)
	}

	for i := range 2 {
		select {
		case <-readings:
		case <-time.After(time.Second):
			t.Fatalf("got %d readings, want 2", i)
		}
	}
}

func TestTrackClippingDebounce(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	// A clipping block carries ceiling-sample counts even though its peak
	// measures just under 0 dBFS.
	hot := audio.Levels{PeakLeft: -0.001, PeakRight: -0.001, RMSLeft: -3, RMSRight: -3, ClipLeft: 40}
	quietLv := audio.Levels{PeakLeft: -20, PeakRight: -20, RMSLeft: -25, RMSRight: -25}

	start := time.Now()

	// Clipping shorter than the alert window never alerts.
	p.trackClipping(hot, true, start)
	p.trackClipping(hot, true, start.Add(ClipAlertAfter/2))
	if p.clipAlerted {
		t.Fatal("alerted before the debounce window elapsed")
	}

	// One clean block resets the window.
	p.trackClipping(quietLv, false, start.Add(ClipAlertAfter/2+time.Second))
	if !p.clipSince.IsZero() {
		t.Fatal("clipSince not reset after a clean block")
	}

	// Sustained clipping past the window alerts once.
	t2 := start.Add(10 * time.Second)
	p.trackClipping(hot, true, t2)
	p.trackClipping(hot, true, t2.Add(ClipAlertAfter))
	if !p.clipAlerted {
		t.Fatal("no alert after sustained clipping")
	}

	// Recovery clears the alert state.
	p.trackClipping(quietLv, false, t2.Add(ClipAlertAfter+time.Second))
	if p.clipAlerted {
		t.Error("clipAlerted still set after recovery")
	}
}

func TestFullScaleBlocksCarryClipSignal(t *testing.T) {
	p, source, _ := newTestPipeline(t)

	readings := make(chan metering.Reading, 8)
	source.Start(func(r metering.Reading) { readings <- r })
	defer source.Stop()

	block := sineBlock(LevelUpdateFrames, 1.0)
	p.ProcessSamples(block, len(block))

	select {
	case r := <-readings:
		// Full-scale S16LE rounds to just under 0 dBFS.
		if r.PeakDB >= 0 {
			t.Errorf("PeakDB = %v, full-scale integer audio should measure under 0", r.PeakDB)
		}
		if !r.Clip {
			t.Error("reading from a full-scale block did not carry the clip signal")
		}
	case <-time.After(time.Second):
		t.Fatal("no reading after a full block")
	}

	// A half-scale block is clean.
	block = sineBlock(LevelUpdateFrames, 0.5)
	p.ProcessSamples(block, len(block))

	select {
	case r := <-readings:
		if r.Clip {
			t.Error("half-scale block reported the clip signal")
		}
	case <-time.After(time.Second):
		t.Fatal("no reading after the second block")
	}
}
