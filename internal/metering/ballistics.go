package metering

import (
	"math"
	"time"
)

// Ballistics applies attack/release smoothing to instantaneous dB values so
// the displayed bar moves like an analog meter instead of flickering with
// every block. One instance per metering session; not safe for concurrent
// use on its own (the session serializes ticks).
type Ballistics struct {
	cfg         Config
	displayedDB float64
	lastUpdate  time.Time
}

// NewBallistics returns a Ballistics engine resting at the floor.
func NewBallistics(cfg Config) *Ballistics {
	return &Ballistics{cfg: cfg, displayedDB: FloorDB}
}

// DisplayedDB returns the current smoothed level.
func (b *Ballistics) DisplayedDB() float64 {
	return b.displayedDB
}

// Update advances the displayed level toward targetDB and returns it.
// dt is clamped to [0, MaxStep] so stalls (a backgrounded dashboard, a
// suspended machine) and non-monotonic timestamps never produce a huge or
// negative smoothing step.
func (b *Ballistics) Update(targetDB float64, now time.Time) float64 {
	target := clampFloor(targetDB)

	dt := b.cfg.MaxStep
	if !b.lastUpdate.IsZero() {
		if elapsed := now.Sub(b.lastUpdate); elapsed < dt {
			dt = max(elapsed, 0)
		}
	}
	b.lastUpdate = now

	delta := target - b.displayedDB
	if math.Abs(delta) < b.cfg.DeadbandDB {
		return b.displayedDB
	}

	if delta > 0 {
		// Hard transients grab the bar immediately; a tiny remaining gap
		// snaps too so the meter settles instead of approaching forever.
		if delta >= b.cfg.CatchRiseDB || delta <= b.cfg.SnapGapDB {
			b.displayedDB = target
			return b.displayedDB
		}
		b.displayedDB += delta * alpha(dt, b.cfg.AttackTau)
		return b.displayedDB
	}

	b.displayedDB += delta * alpha(dt, b.cfg.ReleaseTau)
	if b.displayedDB < FloorDB {
		b.displayedDB = FloorDB
	}
	return b.displayedDB
}

// Reset returns the displayed level to the floor.
func (b *Ballistics) Reset() {
	b.displayedDB = FloorDB
	b.lastUpdate = time.Time{}
}

// alpha is the exponential smoothing coefficient for one step of dt.
func alpha(dt, tau time.Duration) float64 {
	if tau <= 0 {
		return 1
	}
	return 1 - math.Exp(-dt.Seconds()/tau.Seconds())
}
