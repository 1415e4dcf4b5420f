package metering

import (
	"math"
	"time"
)

// PeakHold tracks the held peak line above the live bar plus the highest
// level seen since the last explicit reset. A new maximum restarts the hold
// timer; once the hold window expires the held value decays exponentially
// toward the displayed bar rather than dropping instantly.
type PeakHold struct {
	cfg        Config
	heldDB     float64
	heldAt     time.Time
	maxDB      float64
	lastUpdate time.Time
}

// NewPeakHold returns a PeakHold resting at the floor.
func NewPeakHold(cfg Config) *PeakHold {
	return &PeakHold{cfg: cfg, heldDB: FloorDB, maxDB: FloorDB}
}

// HeldDB returns the current held peak level.
func (p *PeakHold) HeldDB() float64 {
	return p.heldDB
}

// MaxSinceResetDB returns the highest peak observed since the last Reset.
func (p *PeakHold) MaxSinceResetDB() float64 {
	return p.maxDB
}

// Update feeds one peak measurement and the current displayed bar level,
// returning the held peak. The held value never falls below displayedDB.
func (p *PeakHold) Update(peakDB, displayedDB float64, now time.Time) float64 {
	peak := clampFloor(peakDB)

	if peak > p.maxDB {
		p.maxDB = peak
	}

	dt := time.Duration(0)
	if !p.lastUpdate.IsZero() {
		dt = max(now.Sub(p.lastUpdate), 0)
	}
	p.lastUpdate = now

	switch {
	case peak >= p.heldDB:
		p.heldDB = peak
		p.heldAt = now
	case now.Sub(p.heldAt) > p.cfg.HoldDuration:
		// Hold expired: fall toward the live bar, never past it.
		gap := p.heldDB - displayedDB
		if gap > 0 {
			p.heldDB -= gap * (1 - math.Exp(-dt.Seconds()*p.cfg.DecayRate))
		}
	}

	if p.heldDB < displayedDB {
		p.heldDB = displayedDB
	}
	return p.heldDB
}

// Reset clears both the held peak and the max-since-reset readout. Invoked
// by explicit user action only; time never resets the maximum.
func (p *PeakHold) Reset() {
	p.heldDB = FloorDB
	p.maxDB = FloorDB
	p.heldAt = time.Time{}
	p.lastUpdate = time.Time{}
}
