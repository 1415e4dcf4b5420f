package monitor

import (
	"time"

	"github.com/oszuidwest/zwfm-miccheck/internal/audio"
	"github.com/oszuidwest/zwfm-miccheck/internal/config"
	"github.com/oszuidwest/zwfm-miccheck/internal/metering"
	"github.com/oszuidwest/zwfm-miccheck/internal/notify"
)

// LevelUpdateFrames is the number of stereo frames per meter reading.
// 4800 frames at 48kHz gives a 100ms analysis block, ten readings per second.
const LevelUpdateFrames = 4800

// ClipAlertAfter is how long levels must stay in the clip zone before a
// sustained clipping alert fires.
const ClipAlertAfter = 5 * time.Second

// ChannelLevelCallback receives per-channel measurements from the pipeline.
type ChannelLevelCallback func(levels audio.Levels, event audio.SilenceEvent)

// Pipeline turns raw PCM into meter readings. Each finished analysis block
// produces one reading for the metering session plus per-channel levels,
// silence detection and sustained-clip alerting.
type Pipeline struct {
	stats         *audio.BlockStats
	config        *config.Config
	silenceDetect *audio.SilenceDetector
	notifier      *notify.AlertNotifier
	source        *metering.PushSource
	callback      ChannelLevelCallback

	pending []byte // partial trailing frame carried into the next call

	clipSince   time.Time
	clipAlerted bool
}

// NewPipeline creates a pipeline feeding the given push source.
func NewPipeline(cfg *config.Config, silenceDetect *audio.SilenceDetector, notifier *notify.AlertNotifier, source *metering.PushSource, callback ChannelLevelCallback) *Pipeline {
	return &Pipeline{
		stats:         &audio.BlockStats{},
		config:        cfg,
		silenceDetect: silenceDetect,
		notifier:      notifier,
		source:        source,
		callback:      callback,
	}
}

// ProcessSamples folds captured PCM into the current analysis block and
// emits a reading per completed block. Input is split at exact block
// boundaries so pipe reads that straddle a boundary never stretch one
// block and starve the next; a partial trailing frame is carried over.
func (p *Pipeline) ProcessSamples(buf []byte, n int) {
	data := buf[:n]
	if len(p.pending) > 0 {
		data = append(p.pending, data...)
		p.pending = nil
	}

	for {
		need := (LevelUpdateFrames - p.stats.Frames()) * audio.BytesPerFrame
		if len(data) < need {
			break
		}
		p.stats.AddS16LE(data[:need], need)
		data = data[need:]
		p.emitBlock()
	}

	aligned := len(data) - len(data)%audio.BytesPerFrame
	p.stats.AddS16LE(data[:aligned], aligned)
	if rem := data[aligned:]; len(rem) > 0 {
		p.pending = append([]byte(nil), rem...)
	}
}

// emitBlock publishes the finished analysis block and resets the
// accumulator for the next one.
func (p *Pipeline) emitBlock() {
	levels := p.stats.Levels()
	now := time.Now()

	// Fresh config snapshot so dashboard updates apply mid-session.
	cfg := p.config.Snapshot()

	// Full-scale S16LE rounds to fractionally under 0 dBFS, so the clip
	// signal needs the ceiling-sample counter as well as the block peak.
	clipped := levels.Clipped() || levels.PeakMax() >= cfg.MeterClipAtDB

	p.source.Push(metering.Reading{
		RMSDB:  levels.RMSMax(),
		PeakDB: levels.PeakMax(),
		Clip:   clipped,
		Time:   now,
	})

	event := p.silenceDetect.Update(levels.RMSMax(), cfg.SilenceConfig(), now)
	p.notifier.HandleSilence(event, levels.RMSLeft, levels.RMSRight)

	p.trackClipping(levels, clipped, now)

	if p.callback != nil {
		p.callback(levels, event)
	}

	p.stats.Reset()
}

// trackClipping debounces the clip signal the same way silence is
// debounced: blocks have to keep clipping before the alert fires, and one
// clean block ends the period.
func (p *Pipeline) trackClipping(levels audio.Levels, clipped bool, now time.Time) {
	if clipped {
		if p.clipSince.IsZero() {
			p.clipSince = now
		}
		if !p.clipAlerted && now.Sub(p.clipSince) >= ClipAlertAfter {
			p.clipAlerted = true
			p.notifier.HandleClipStart(levels.PeakLeft, levels.PeakRight)
		}
		return
	}

	if p.clipAlerted {
		p.notifier.HandleClipEnd(now.Sub(p.clipSince).Milliseconds(), levels.PeakLeft, levels.PeakRight)
	}
	p.clipSince = time.Time{}
	p.clipAlerted = false
}
