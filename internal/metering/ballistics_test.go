package metering

import (
	"math"
	"testing"
	"time"
)

const testTick = time.Second / 60

func TestBallisticsConvergesWithoutOvershoot(t *testing.T) {
	b := NewBallistics(DefaultConfig())
	now := time.Unix(10, 0)

	// Gap below the catch threshold so the smooth attack path is exercised.
	const target = -55.0
	prev := b.DisplayedDB()
	for i := range 300 {
		now = now.Add(testTick)
		got := b.Update(target, now)
		if got > target {
			t.Fatalf("tick %d: displayed %.3f overshot target %.3f", i, got, target)
		}
		if got < prev {
			t.Fatalf("tick %d: displayed %.3f fell below previous %.3f while rising", i, got, prev)
		}
		prev = got
	}
	if math.Abs(prev-target) > 0.01 {
		t.Errorf("displayed = %.3f, want within 0.01 of %.3f", prev, target)
	}
}

func TestBallisticsDeadband(t *testing.T) {
	cfg := DefaultConfig()
	b := NewBallistics(cfg)
	now := time.Unix(10, 0)
	b.Update(-30, now) // catch snap to -30

	got := b.Update(-30+cfg.DeadbandDB/2, now.Add(testTick))
	if got != -30 {
		t.Errorf("displayed = %.3f, want unchanged -30 inside deadband", got)
	}
}

func TestBallisticsCatchesHardTransient(t *testing.T) {
	b := NewBallistics(DefaultConfig())
	got := b.Update(-20, time.Unix(10, 0))
	if got != -20 {
		t.Errorf("displayed = %.3f, want -20 after a 40 dB rise in one tick", got)
	}
}

func TestBallisticsSnapNearTarget(t *testing.T) {
	cfg := DefaultConfig()
	b := NewBallistics(cfg)
	now := time.Unix(10, 0)
	b.Update(-30, now)

	got := b.Update(-30+cfg.SnapGapDB-0.05, now.Add(testTick))
	if got != -30+cfg.SnapGapDB-0.05 {
		t.Errorf("displayed = %.3f, want exact target when the rising gap is below the snap threshold", got)
	}
}

func TestBallisticsReleaseIsSlowerThanAttack(t *testing.T) {
	cfg := DefaultConfig()

	rise := NewBallistics(cfg)
	now := time.Unix(10, 0)
	rise.Update(-40, now)                        // catch snap to -40
	risen := rise.Update(-33, now.Add(testTick)) // 7 dB gap, below catch

	fall := NewBallistics(cfg)
	fall.Update(-33, now) // catch snap to -33
	fallen := fall.Update(-40, now.Add(testTick))

	riseStep := risen - (-40.0)
	fallStep := -33.0 - fallen
	if fallStep >= riseStep {
		t.Errorf("fall step %.4f dB should be smaller than rise step %.4f dB", fallStep, riseStep)
	}
}

func TestBallisticsClampsTimeStep(t *testing.T) {
	tests := []struct {
		name string
		skew time.Duration
	}{
		{"stalled clock", 10 * time.Second},
		{"backwards clock", -5 * time.Second},
		{"duplicate timestamp", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			b := NewBallistics(cfg)
			now := time.Unix(100, 0)
			b.Update(-40, now)

			got := b.Update(-35, now.Add(tt.skew))
			maxStep := 5 * alpha(cfg.MaxStep, cfg.AttackTau)
			if got < -40 || got > -40+maxStep+1e-9 {
				t.Errorf("displayed = %.3f, want within one clamped step above -40 (max %.3f)", got, -40+maxStep)
			}
		})
	}
}

func TestBallisticsReset(t *testing.T) {
	b := NewBallistics(DefaultConfig())
	b.Update(-10, time.Unix(10, 0))
	b.Reset()
	if b.DisplayedDB() != FloorDB {
		t.Errorf("DisplayedDB = %.2f after Reset, want %.2f", b.DisplayedDB(), FloorDB)
	}
}

func TestBallisticsNonFiniteTarget(t *testing.T) {
	b := NewBallistics(DefaultConfig())
	now := time.Unix(10, 0)
	for i, target := range []float64{math.NaN(), math.Inf(-1), -1000} {
		now = now.Add(testTick)
		got := b.Update(target, now)
		if math.IsNaN(got) || math.IsInf(got, 0) || got < FloorDB {
			t.Fatalf("step %d: displayed = %v, want finite and at or above the floor", i, got)
		}
	}
}
