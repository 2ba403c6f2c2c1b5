// Package session owns the unlocked vault for the lifetime of user
// presence. It governs three independent exposure concerns, each with its
// own lock and timer:
//
//   - idle auto-lock: user activity restarts a single idle timer; expiry
//     locks the session and clears the in-memory vault.
//   - debounced persistence: mutations schedule a trailing-edge save and
//     expose a SaveState for display.
//   - clipboard exposure: copied secrets are cleared after a delay unless
//     the clipboard has changed since.
//
// Timer callbacks run on their own goroutines. Each callback re-checks a
// generation counter before acting, so a superseded or cancelled timer is a
// no-op. Backend I/O never happens while a state mutex is held.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/clock"
	"github.com/dmitrijs2005/keynest/internal/health"
	"github.com/dmitrijs2005/keynest/internal/logging"
	"github.com/dmitrijs2005/keynest/internal/passgen"
	"github.com/dmitrijs2005/keynest/internal/strength"
)

var (
	ErrLocked          = errors.New("vault is locked")
	ErrAlreadyUnlocked = errors.New("vault is already unlocked")
	ErrNoTOTP          = errors.New("entry has no TOTP secret")
)

// Backend persists the encrypted vault. It is implemented by
// services.VaultService.
type Backend interface {
	VaultExists(ctx context.Context) (bool, error)
	InitVault(ctx context.Context, masterPassword []byte) error
	UnlockVault(ctx context.Context, masterPassword []byte) (*models.VaultData, error)
	LockVault(ctx context.Context) error
	SaveVault(ctx context.Context, vault *models.VaultData) error
	LoadVault(ctx context.Context) (*models.VaultData, error)
}

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type State int

const (
	StateLocked State = iota
	StateUnlocked
)

func (s State) String() string {
	if s == StateUnlocked {
		return "unlocked"
	}
	return "locked"
}

// LockReason records why a session was locked.
type LockReason string

const (
	LockReasonManual   LockReason = "manual"
	LockReasonTimeout  LockReason = "timeout"
	LockReasonTeardown LockReason = "teardown"
)

// ActivityKind is a user-presence signal that restarts the idle timer.
type ActivityKind string

const (
	ActivityPointerMove ActivityKind = "pointermove"
	ActivityPointerDown ActivityKind = "pointerdown"
	ActivityKeyDown     ActivityKind = "keydown"
	ActivityTouchStart  ActivityKind = "touchstart"
	ActivityScroll      ActivityKind = "scroll"
)

func (k ActivityKind) valid() bool {
	switch k {
	case ActivityPointerMove, ActivityPointerDown, ActivityKeyDown, ActivityTouchStart, ActivityScroll:
		return true
	}
	return false
}

// Options holds the guard's timings. Zero fields take the defaults.
type Options struct {
	IdleTimeout    time.Duration
	SaveDebounce   time.Duration
	SavedDisplay   time.Duration
	ClipboardClear time.Duration
	ToastDuration  time.Duration
	MaxPasswordAge time.Duration
}

func DefaultOptions() Options {
	return Options{
		IdleTimeout:    3 * time.Minute,
		SaveDebounce:   400 * time.Millisecond,
		SavedDisplay:   1200 * time.Millisecond,
		ClipboardClear: 25 * time.Second,
		ToastDuration:  1200 * time.Millisecond,
		MaxPasswordAge: health.DefaultMaxAge,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.SaveDebounce <= 0 {
		o.SaveDebounce = d.SaveDebounce
	}
	if o.SavedDisplay <= 0 {
		o.SavedDisplay = d.SavedDisplay
	}
	if o.ClipboardClear <= 0 {
		o.ClipboardClear = d.ClipboardClear
	}
	if o.ToastDuration <= 0 {
		o.ToastDuration = d.ToastDuration
	}
	if o.MaxPasswordAge <= 0 {
		o.MaxPasswordAge = d.MaxPasswordAge
	}
	return o
}

type Option func(*Session)

func WithClock(c clock.Clock) Option { return func(s *Session) { s.clock = c } }

func WithLogger(l logging.Logger) Option {
	return func(s *Session) { s.log = l.With("component", "session") }
}

func WithGenerator(g *passgen.Generator) Option { return func(s *Session) { s.gen = g } }

func WithEstimator(e strength.Estimator) Option { return func(s *Session) { s.estimator = e } }

// WithLockHook registers fn to run after every lock, including idle
// expiry, which calls it from a timer goroutine.
func WithLockHook(fn func(LockReason)) Option { return func(s *Session) { s.onLock = fn } }

// Session is the vault session and exposure guard.
type Session struct {
	backend   Backend
	clock     clock.Clock
	log       logging.Logger
	gen       *passgen.Generator
	estimator strength.Estimator
	analyzer  *health.Analyzer
	opts      Options
	onLock    func(LockReason)

	mu    sync.Mutex
	state State
	epoch uint64
	vault *models.VaultData

	idle     *idleTimer
	saver    *saver
	exposure *exposure
	toast    *toaster
}

func New(backend Backend, cb Clipboard, opts Options, options ...Option) *Session {
	s := &Session{
		backend:   backend,
		clock:     clock.System(),
		log:       logging.Discard(),
		estimator: strength.Zxcvbn{},
		opts:      opts.withDefaults(),
	}
	for _, o := range options {
		o(s)
	}
	if s.gen == nil {
		s.gen = passgen.New()
	}
	s.analyzer = health.New(s.estimator, health.WithMaxAge(s.opts.MaxPasswordAge))

	s.toast = newToaster(s.clock, s.opts.ToastDuration)
	s.exposure = newExposure(s.clock, s.opts.ClipboardClear, cb, s.toast, s.log)
	s.saver = newSaver(s.clock, s.opts.SaveDebounce, s.opts.SavedDisplay, s.persist, s.log)
	s.idle = newIdleTimer(s.clock, s.opts.IdleTimeout, s.expire)
	return s
}

// Options returns the effective timings.
func (s *Session) Options() Options { return s.opts }

// Exists reports whether the backend holds a vault.
func (s *Session) Exists(ctx context.Context) (bool, error) {
	return s.backend.VaultExists(ctx)
}

// Create initialises a new vault and opens it. The caller owns
// masterPassword and should wipe it afterwards.
func (s *Session) Create(ctx context.Context, masterPassword []byte) error {
	if s.State() == StateUnlocked {
		return ErrAlreadyUnlocked
	}
	if err := s.backend.InitVault(ctx, masterPassword); err != nil {
		return err
	}
	v, err := s.backend.LoadVault(ctx)
	if err != nil {
		_ = s.backend.LockVault(ctx)
		return err
	}
	if v == nil {
		v = models.NewVaultData()
	}
	s.open(ctx, v)
	return nil
}

// Unlock opens the existing vault.
func (s *Session) Unlock(ctx context.Context, masterPassword []byte) error {
	if s.State() == StateUnlocked {
		return ErrAlreadyUnlocked
	}
	v, err := s.backend.UnlockVault(ctx, masterPassword)
	if err != nil {
		return err
	}
	if v == nil {
		v = models.NewVaultData()
	}
	s.open(ctx, v)
	return nil
}

func (s *Session) open(ctx context.Context, v *models.VaultData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateUnlocked
	s.epoch++
	s.vault = v
	s.idle.Reset()
	s.log.Info(ctx, "session unlocked", "entries", len(v.Entries))
}

// Lock leaves the unlocked state: it cancels the idle and save timers,
// waits for an in-flight save, and asks the backend to lock. The in-memory
// vault and any guarded clipboard content are cleared whether or not the
// backend call succeeds. Locking a locked session is a no-op.
func (s *Session) Lock(ctx context.Context, reason LockReason) error {
	s.mu.Lock()
	if s.state != StateUnlocked {
		s.mu.Unlock()
		return nil
	}
	v := s.detachLocked()
	s.mu.Unlock()

	return s.finishLock(ctx, v, reason)
}

// expire is the idle timer callback for generation g.
func (s *Session) expire(g uint64) {
	s.mu.Lock()
	if s.state != StateUnlocked || !s.idle.current(g) {
		s.mu.Unlock()
		return
	}
	v := s.detachLocked()
	s.mu.Unlock()

	_ = s.finishLock(context.Background(), v, LockReasonTimeout)
}

func (s *Session) detachLocked() *models.VaultData {
	s.state = StateLocked
	s.epoch++
	v := s.vault
	s.vault = nil
	s.idle.Stop()
	s.saver.Cancel()
	return v
}

func (s *Session) finishLock(ctx context.Context, v *models.VaultData, reason LockReason) (err error) {
	defer func() {
		v.Wipe()
		s.exposure.Flush(ctx)
		if err != nil {
			s.log.Warn(ctx, "backend lock failed", "reason", reason, "error", err)
		}
		s.log.Info(ctx, "session locked", "reason", reason)
		if s.onLock != nil {
			s.onLock(reason)
		}
	}()

	s.saver.Wait()
	return s.backend.LockVault(ctx)
}

// Teardown cancels every outstanding timer and locks the session.
func (s *Session) Teardown(ctx context.Context) error {
	err := s.Lock(ctx, LockReasonTeardown)
	s.idle.Stop()
	s.saver.Cancel()
	s.exposure.Flush(ctx)
	s.toast.Stop()
	return err
}

// Flush runs a pending debounced save immediately.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// Activity records a user-presence signal. It restarts the idle timer
// while the session is unlocked and is ignored otherwise.
func (s *Session) Activity(kind ActivityKind) {
	if !kind.valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnlocked {
		s.idle.Reset()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SaveState() SaveState { return s.saver.State() }

// Toast returns the message currently on display, if any.
func (s *Session) Toast() (string, bool) { return s.toast.Current() }

// persist saves the vault as of epoch. A session locked or reopened since
// the save was scheduled writes nothing.
func (s *Session) persist(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	if s.state != StateUnlocked || s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.vault.Clone()
	s.mu.Unlock()

	return s.backend.SaveVault(ctx, snapshot)
}
