package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/keynest/internal/clock"
	"github.com/dmitrijs2005/keynest/internal/logging"
)

const toastCopyFailed = "Failed to copy"

// exposure writes secrets to the clipboard and clears them after a delay,
// but only while the clipboard still holds what it wrote. At most one clear
// is pending.
type exposure struct {
	clock      clock.Clock
	clearAfter time.Duration
	cb         Clipboard
	toast      *toaster
	log        logging.Logger

	mu    sync.Mutex
	gen   uint64
	last  string
	armed bool
	timer clock.Timer
}

func newExposure(c clock.Clock, clearAfter time.Duration, cb Clipboard, t *toaster, log logging.Logger) *exposure {
	return &exposure{clock: c, clearAfter: clearAfter, cb: cb, toast: t, log: log}
}

// Copy writes text to the clipboard and arms the clear timer, replacing
// any pending one. label names the value in the toast.
func (e *exposure) Copy(text, label string) error {
	e.mu.Lock()
	if err := e.cb.WriteAll(text); err != nil {
		e.mu.Unlock()
		e.toast.Show(toastCopyFailed)
		return fmt.Errorf("copy %s: %w", label, err)
	}

	e.gen++
	e.last = text
	e.armed = true
	if e.timer != nil {
		e.timer.Stop()
	}
	g := e.gen
	e.timer = e.clock.AfterFunc(e.clearAfter, func() { e.expire(g) })
	e.mu.Unlock()

	e.toast.Show(fmt.Sprintf("Copied %s to clipboard", label))
	return nil
}

func (e *exposure) expire(g uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g != e.gen || !e.armed {
		return
	}
	e.timer = nil
	e.clearLocked(context.Background())
}

// Flush clears the guarded value now, if still present, and cancels the
// pending timer.
func (e *exposure) Flush(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.armed {
		e.clearLocked(ctx)
	}
}

// Pending reports whether a clear is scheduled.
func (e *exposure) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed
}

// clearLocked empties the clipboard if it still holds the last written
// value. Failures are logged at debug level only.
func (e *exposure) clearLocked(ctx context.Context) {
	last := e.last
	e.last = ""
	e.armed = false

	cur, err := e.cb.ReadAll()
	if err != nil {
		e.log.Debug(ctx, "clipboard read failed", "error", err)
		return
	}
	if cur != last {
		return
	}
	if err := e.cb.WriteAll(""); err != nil {
		e.log.Debug(ctx, "clipboard clear failed", "error", err)
	}
}

// toaster shows one transient message at a time.
type toaster struct {
	clock    clock.Clock
	duration time.Duration

	mu      sync.Mutex
	gen     uint64
	msg     string
	visible bool
	timer   clock.Timer
}

func newToaster(c clock.Clock, d time.Duration) *toaster {
	return &toaster{clock: c, duration: d}
}

// Show replaces the current message and restarts the dismiss timer.
func (t *toaster) Show(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.msg = msg
	t.visible = true
	if t.timer != nil {
		t.timer.Stop()
	}
	g := t.gen
	t.timer = t.clock.AfterFunc(t.duration, func() { t.dismiss(g) })
}

func (t *toaster) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.msg, t.visible
}

func (t *toaster) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.msg = ""
	t.visible = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *toaster) dismiss(g uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g != t.gen {
		return
	}
	t.msg = ""
	t.visible = false
	t.timer = nil
}
