package metering

import (
	"testing"
	"time"
)

func TestPeakHoldHoldsDuringWindow(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPeakHold(cfg)
	now := time.Unix(10, 0)

	p.Update(-12, -20, now)
	// 80 ticks at 60 Hz stay inside the 1.5 s hold window.
	prev := p.HeldDB()
	for i := range 80 {
		now = now.Add(testTick)
		got := p.Update(-40, -20, now)
		if got < prev {
			t.Fatalf("tick %d: held %.3f fell below %.3f inside the hold window", i, got, prev)
		}
		prev = got
	}
	if prev != -12 {
		t.Errorf("held = %.3f at end of hold window, want -12", prev)
	}
}

func TestPeakHoldDecaysTowardBar(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPeakHold(cfg)
	now := time.Unix(10, 0)

	p.Update(-6, -20, now)
	now = now.Add(cfg.HoldDuration + time.Millisecond)

	const displayed = -20.0
	prev := p.Update(-40, displayed, now)
	for i := range 600 {
		now = now.Add(testTick)
		got := p.Update(-40, displayed, now)
		if got > prev {
			t.Fatalf("tick %d: held %.3f rose during decay", i, got)
		}
		if got < displayed {
			t.Fatalf("tick %d: held %.3f fell below the displayed bar %.3f", i, got, displayed)
		}
		prev = got
	}
	if prev-displayed > 0.05 {
		t.Errorf("held = %.3f after decay, want within 0.05 of %.3f", prev, displayed)
	}
}

func TestPeakHoldNewMaximumRestartsTimer(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPeakHold(cfg)
	now := time.Unix(10, 0)

	p.Update(-12, -30, now)
	now = now.Add(cfg.HoldDuration - 100*time.Millisecond)
	p.Update(-6, -30, now) // new maximum just before expiry

	// The old window has long expired, but the fresh maximum must still hold.
	now = now.Add(cfg.HoldDuration - 100*time.Millisecond)
	if got := p.Update(-40, -30, now); got != -6 {
		t.Errorf("held = %.3f, want -6 while the restarted window is open", got)
	}
}

func TestPeakHoldMaxSinceReset(t *testing.T) {
	p := NewPeakHold(DefaultConfig())
	now := time.Unix(10, 0)

	levels := []float64{-30, -12, -40, -3, -50, -25}
	prevMax := FloorDB
	for i, peak := range levels {
		now = now.Add(time.Second)
		p.Update(peak, FloorDB, now)
		if p.MaxSinceResetDB() < prevMax {
			t.Fatalf("step %d: max %.2f decreased from %.2f", i, p.MaxSinceResetDB(), prevMax)
		}
		prevMax = p.MaxSinceResetDB()
	}
	if prevMax != -3 {
		t.Errorf("MaxSinceResetDB = %.2f, want -3", prevMax)
	}

	p.Reset()
	if p.MaxSinceResetDB() != FloorDB {
		t.Errorf("MaxSinceResetDB = %.2f after Reset, want %.2f", p.MaxSinceResetDB(), FloorDB)
	}
	if p.HeldDB() != FloorDB {
		t.Errorf("HeldDB = %.2f after Reset, want %.2f", p.HeldDB(), FloorDB)
	}
}

func TestPeakHoldNeverBelowDisplayed(t *testing.T) {
	p := NewPeakHold(DefaultConfig())
	now := time.Unix(10, 0)

	if got := p.Update(-50, -20, now); got != -20 {
		t.Errorf("held = %.3f, want lifted to the displayed bar -20", got)
	}
}
