package session

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/keynest/internal/clock"
)

// idleTimer is a single restartable countdown. onExpire receives the
// generation of the countdown that elapsed.
type idleTimer struct {
	clock    clock.Clock
	timeout  time.Duration
	onExpire func(gen uint64)

	mu    sync.Mutex
	gen   uint64
	timer clock.Timer
}

func newIdleTimer(c clock.Clock, timeout time.Duration, onExpire func(uint64)) *idleTimer {
	return &idleTimer{clock: c, timeout: timeout, onExpire: onExpire}
}

// Reset cancels the running countdown and starts a new one.
func (t *idleTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.timer != nil {
		t.timer.Stop()
	}
	g := t.gen
	t.timer = t.clock.AfterFunc(t.timeout, func() { t.fire(g) })
}

func (t *idleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// current reports whether g is the latest countdown and has not been
// stopped.
func (t *idleTimer) current(g uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return g == t.gen
}

// running reports whether a countdown is active.
func (t *idleTimer) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *idleTimer) fire(g uint64) {
	t.mu.Lock()
	if g != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.onExpire(g)
}
