package metering

import (
	"sync"
	"time"
)

// A Source delivers readings to a tick function until stopped. Both
// production paths satisfy the same contract, so the pipeline behaves
// identically whether blocks are pushed from the PCM stream or polled
// from an analysis callback at display rate.
type Source interface {
	// Start begins delivery. Each reading is handed to tick in arrival
	// order from a single goroutine.
	Start(tick func(Reading))
	// Stop halts delivery. No tick callback runs after Stop returns.
	Stop()
}

// PushSource accepts readings from a producer (the capture pipeline) and
// forwards them to the session. Push never blocks the producer: when the
// consumer falls behind, the oldest queued reading is dropped.
type PushSource struct {
	ch chan Reading

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// NewPushSource returns a PushSource with a small delivery buffer.
func NewPushSource() *PushSource {
	return &PushSource{ch: make(chan Reading, 16)}
}

// Push queues one reading for delivery.
func (p *PushSource) Push(r Reading) {
	select {
	case p.ch <- r:
	default:
		select {
		case <-p.ch:
		default:
		}
		select {
		case p.ch <- r:
		default:
		}
	}
}

// Start implements Source.
func (p *PushSource) Start(tick func(Reading)) {
	p.mu.Lock()
	done := make(chan struct{})
	stopped := make(chan struct{})
	p.done = done
	p.stopped = stopped
	p.mu.Unlock()

	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case r := <-p.ch:
				tick(r)
			}
		}
	}()
}

// Stop implements Source. It returns once the delivery goroutine has exited.
func (p *PushSource) Stop() {
	p.mu.Lock()
	done, stopped := p.done, p.stopped
	p.done = nil
	p.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped
}

// PollSource drives the session from a fixed-interval ticker, polling the
// provided function for the latest reading. This is the fallback path for
// sources that only expose a query interface.
type PollSource struct {
	poll     func(now time.Time) Reading
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// NewPollSource returns a PollSource querying poll every interval.
func NewPollSource(interval time.Duration, poll func(now time.Time) Reading) *PollSource {
	return &PollSource{poll: poll, interval: interval}
}

// Start implements Source.
func (p *PollSource) Start(tick func(Reading)) {
	p.mu.Lock()
	done := make(chan struct{})
	stopped := make(chan struct{})
	p.done = done
	p.stopped = stopped
	p.mu.Unlock()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				tick(p.poll(now))
			}
		}
	}()
}

// Stop implements Source. It returns once the ticker goroutine has exited.
func (p *PollSource) Stop() {
	p.mu.Lock()
	done, stopped := p.done, p.stopped
	p.done = nil
	p.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped
}
