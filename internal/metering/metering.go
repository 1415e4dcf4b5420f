// Package metering implements the real-time level metering pipeline for the
// mic check monitor: loudness estimation, meter ballistics, peak hold and
// zone-based setup feedback.
package metering

import (
	"math"
	"time"
)

// FloorDB is the minimum dB level (silence). Every dB value produced by this
// package is clamped to it.
const FloorDB = -60.0

// Config holds the tuning parameters for one metering session. All values
// ship with defaults; the dashboard exposes them as named settings rather
// than baked-in literals.
type Config struct {
	// Ballistics
	AttackTau   time.Duration // smoothing time constant while rising
	ReleaseTau  time.Duration // smoothing time constant while falling
	MaxStep     time.Duration // dt clamp, guards against stalls and clock jumps
	DeadbandDB  float64       // deltas below this are ignored
	SnapGapDB   float64       // rising gap below this snaps straight to target
	CatchRiseDB float64       // rising gap at or above this snaps straight to target

	// Peak hold
	HoldDuration time.Duration // how long a held peak survives without a new maximum
	DecayRate    float64       // exponential approach rate toward the live bar, per second

	// Zone classification
	QuietBelowDB float64 // Quiet | Sweet boundary
	HotAboveDB   float64 // Sweet | Hot boundary
	ClipAtDB     float64 // Hot | Clip boundary
	HysteresisDB float64 // margin added/subtracted at each boundary
}

// DefaultConfig returns the canonical tuning set.
func DefaultConfig() Config {
	return Config{
		AttackTau:   250 * time.Millisecond,
		ReleaseTau:  800 * time.Millisecond,
		MaxStep:     50 * time.Millisecond,
		DeadbandDB:  0.3,
		SnapGapDB:   0.5,
		CatchRiseDB: 8.0,

		HoldDuration: 1500 * time.Millisecond,
		DecayRate:    2.0,

		QuietBelowDB: -24.0,
		HotAboveDB:   -6.0,
		ClipAtDB:     0.0,
		HysteresisDB: 1.0,
	}
}

// Reading is one pre-aggregated level measurement delivered to a session.
// RMSDB and PeakDB are dBFS values; PeakDB may be NaN when the source cannot
// measure a true peak, in which case the session falls back to RMSDB.
type Reading struct {
	RMSDB  float64
	PeakDB float64
	// Clip marks a block whose raw samples hit the converter ceiling.
	// Integer capture formats round full scale to fractionally under
	// 0 dBFS, so a dB comparison alone cannot detect clipping; sources
	// that count ceiling samples report them here.
	Clip bool
	Time time.Time
}

// RMSOnlyReading returns a Reading for sources without true-peak capability.
func RMSOnlyReading(rmsDB float64, now time.Time) Reading {
	return Reading{RMSDB: rmsDB, PeakDB: math.NaN(), Time: now}
}

// clampFloor limits a dB value to the floor and maps non-finite input to it.
func clampFloor(db float64) float64 {
	if math.IsNaN(db) || math.IsInf(db, -1) || db < FloorDB {
		return FloorDB
	}
	return db
}
