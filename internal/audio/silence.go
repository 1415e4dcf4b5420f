package audio

import (
	"sync"
	"time"
)

// SilenceConfig holds the thresholds for dead-input detection. A mic check
// against an unplugged or muted source should be flagged, not meter at the
// floor forever.
type SilenceConfig struct {
	ThresholdDB float64 // level below which the input counts as silent
	DurationMs  int64   // milliseconds of silence before triggering
	RecoveryMs  int64   // milliseconds of signal before considering recovered
}

// SilenceEvent is the result of one detector update.
type SilenceEvent struct {
	InSilence  bool  // currently in confirmed silence
	DurationMs int64 // length of the current silence period, 0 when not silent

	CurrentLevelDB float64 // the level that produced this event

	JustEntered     bool  // true on the tick when silence is first confirmed
	JustRecovered   bool  // true on the tick when recovery completes
	TotalDurationMs int64 // full silence duration, set when JustRecovered
}

// SilenceDetector debounces a dB level against a threshold: silence has to
// persist before it is confirmed, and signal has to persist before the
// detector recovers. It is safe for concurrent use.
type SilenceDetector struct {
	mu            sync.Mutex
	silenceStart  time.Time
	recoveryStart time.Time
	inSilence     bool
	silenceMs     int64
}

// NewSilenceDetector returns a detector in the signal-present state.
func NewSilenceDetector() *SilenceDetector {
	return &SilenceDetector{}
}

// Update feeds one level measurement and returns the detector state.
func (d *SilenceDetector) Update(levelDB float64, cfg SilenceConfig, now time.Time) SilenceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	event := SilenceEvent{CurrentLevelDB: levelDB}

	if levelDB < cfg.ThresholdDB {
		d.recoveryStart = time.Time{}
		if d.silenceStart.IsZero() {
			d.silenceStart = now
		}
		d.silenceMs = now.Sub(d.silenceStart).Milliseconds()

		switch {
		case d.inSilence:
			event.InSilence = true
			event.DurationMs = d.silenceMs
		case d.silenceMs >= cfg.DurationMs:
			d.inSilence = true
			event.InSilence = true
			event.DurationMs = d.silenceMs
			event.JustEntered = true
		}
		return event
	}

	if !d.inSilence {
		d.silenceStart = time.Time{}
		return event
	}

	// Signal returned while in confirmed silence: require it to persist.
	if d.recoveryStart.IsZero() {
		d.recoveryStart = now
	}
	if now.Sub(d.recoveryStart).Milliseconds() >= cfg.RecoveryMs {
		event.JustRecovered = true
		event.TotalDurationMs = d.silenceMs
		d.inSilence = false
		d.silenceMs = 0
		d.silenceStart = time.Time{}
		d.recoveryStart = time.Time{}
		return event
	}

	event.InSilence = true
	event.DurationMs = d.silenceMs
	return event
}

// Reset clears the detection state.
func (d *SilenceDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silenceStart = time.Time{}
	d.recoveryStart = time.Time{}
	d.inSilence = false
	d.silenceMs = 0
}
