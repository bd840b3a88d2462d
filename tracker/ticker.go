package tracker

import (
	"sync"
	"time"
)

// Ticker runs a callback at a fixed interval on a single goroutine. The
// callback executes inline in the loop, so two ticks can never overlap; when
// a callback runs longer than the interval, intermediate ticks are dropped
// rather than queued. Used by value composition, not subclassing.
type Ticker struct {
	interval time.Duration
	callback func(now time.Time)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewTicker builds a ticker; it does not start until Start is called.
func NewTicker(interval time.Duration, callback func(now time.Time)) *Ticker {
	return &Ticker{interval: interval, callback: callback}
}

// Start launches the loop. Starting a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done)
}

// Stop halts the loop and waits for any in-flight callback to return, so a
// caller can rely on no tick running after Stop.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the loop is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Ticker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-tick.C:
			t.callback(now)
		}
	}
}
