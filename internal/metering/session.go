package metering

import (
	"math"
	"sync"
)

// Snapshot is the UI-facing state of a metering session after one tick.
// DisplayedDB and HeldDB are clamped to [FloorDB, 0] for rendering; the Clip
// flag carries the above-zero information instead.
type Snapshot struct {
	DisplayedDB     float64 `json:"displayed_db"`
	HeldDB          float64 `json:"held_db"`
	MaxSinceResetDB float64 `json:"max_since_reset_db"`
	Zone            string  `json:"zone"`
	Message         string  `json:"message"`
	Clip            bool    `json:"clip"`
}

// Session owns one metering pipeline: ballistics, peak hold and zone
// classifier fed from a single reading stream. Ticks are serialized; the
// snapshot may be read from any goroutine.
type Session struct {
	cfg        Config
	ballistics *Ballistics
	peaks      *PeakHold
	classifier *Classifier

	mu   sync.RWMutex
	snap Snapshot
}

// NewSession returns a Session resting at the floor in ZoneQuiet.
func NewSession(cfg Config) *Session {
	s := &Session{
		cfg:        cfg,
		ballistics: NewBallistics(cfg),
		peaks:      NewPeakHold(cfg),
		classifier: NewClassifier(cfg),
	}
	s.snap = restingSnapshot()
	return s
}

// Tick processes one reading through the pipeline and returns the updated
// snapshot. Readings must arrive in order; the ballistics dt clamp absorbs
// gaps and clock anomalies.
func (s *Session) Tick(r Reading) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	peakDB := r.PeakDB
	if math.IsNaN(peakDB) {
		// Source cannot measure a true peak; the instantaneous RMS is a
		// documented lower-precision stand-in.
		peakDB = r.RMSDB
	}

	displayed := s.ballistics.Update(r.RMSDB, r.Time)
	held := s.peaks.Update(peakDB, displayed, r.Time)
	clipped := r.Clip || peakDB >= s.cfg.ClipAtDB
	zone, changed := s.classifier.Observe(displayed, clipped)

	snap := Snapshot{
		DisplayedDB:     clampCeiling(displayed),
		HeldDB:          clampCeiling(held),
		MaxSinceResetDB: s.peaks.MaxSinceResetDB(),
		Zone:            zone.String(),
		Message:         s.snap.Message,
		Clip:            zone == ZoneClip,
	}
	if changed || snap.Message == "" {
		snap.Message = zone.Message()
	}

	s.snap = snap
	return snap
}

// Snapshot returns the most recent pipeline state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ResetPeakHold clears the held peak and the max-since-reset readout.
func (s *Session) ResetPeakHold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peaks.Reset()
	s.snap.HeldDB = FloorDB
	s.snap.MaxSinceResetDB = FloorDB
}

// Reset returns every pipeline stage to its initial state. Called when a
// metering session stops; nothing survives across sessions.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballistics.Reset()
	s.peaks.Reset()
	s.classifier.Reset()
	s.snap = restingSnapshot()
}

func restingSnapshot() Snapshot {
	return Snapshot{
		DisplayedDB:     FloorDB,
		HeldDB:          FloorDB,
		MaxSinceResetDB: FloorDB,
		Zone:            ZoneQuiet.String(),
		Message:         ZoneQuiet.Message(),
	}
}

// clampCeiling limits a dB value to [FloorDB, 0] for rendering.
func clampCeiling(db float64) float64 {
	if db > 0 {
		return 0
	}
	return clampFloor(db)
}
