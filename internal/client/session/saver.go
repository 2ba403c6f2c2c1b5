package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/keynest/internal/clock"
	"github.com/dmitrijs2005/keynest/internal/logging"
)

// SaveState is the persistence status shown to the user.
type SaveState int

const (
	SaveIdle SaveState = iota
	SaveSaving
	SaveSaved
	SaveError
)

func (s SaveState) String() string {
	switch s {
	case SaveSaving:
		return "saving"
	case SaveSaved:
		return "saved"
	case SaveError:
		return "error"
	default:
		return "idle"
	}
}

// saver debounces save requests on the trailing edge. Saves run one at a
// time; only the outcome of the most recently scheduled save updates the
// state.
type saver struct {
	clock    clock.Clock
	debounce time.Duration
	display  time.Duration
	persist  func(ctx context.Context, epoch uint64) error
	log      logging.Logger

	io sync.Mutex

	mu      sync.Mutex
	seq     uint64
	epoch   uint64
	pending bool
	state   SaveState
	timer   clock.Timer
	revert  clock.Timer
}

func newSaver(c clock.Clock, debounce, display time.Duration, persist func(context.Context, uint64) error, log logging.Logger) *saver {
	return &saver{clock: c, debounce: debounce, display: display, persist: persist, log: log}
}

// Schedule requests a save of the vault as of epoch, replacing any pending
// request.
func (s *saver) Schedule(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.epoch = epoch
	s.pending = true
	s.state = SaveSaving
	s.stopTimersLocked()

	q := s.seq
	s.timer = s.clock.AfterFunc(s.debounce, func() { _ = s.run(context.Background(), q) })
}

// Cancel drops any pending save and returns to idle. A save already
// writing completes, but its outcome is discarded.
func (s *saver) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.pending = false
	s.state = SaveIdle
	s.stopTimersLocked()
}

// Flush runs the pending save now, if there is one.
func (s *saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	q := s.seq
	s.mu.Unlock()

	return s.run(ctx, q)
}

// Wait blocks until no save is writing.
func (s *saver) Wait() {
	s.io.Lock()
	defer s.io.Unlock()
}

func (s *saver) State() SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *saver) run(ctx context.Context, q uint64) error {
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	if q != s.seq || !s.pending {
		s.mu.Unlock()
		return nil
	}
	s.pending = false
	s.timer = nil
	epoch := s.epoch
	s.mu.Unlock()

	err := s.persist(ctx, epoch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if q != s.seq {
		return err
	}
	if err != nil {
		s.state = SaveError
		s.log.Error(ctx, "vault save failed", "error", err)
		return err
	}
	s.state = SaveSaved
	s.revert = s.clock.AfterFunc(s.display, func() { s.settle(q) })
	return nil
}

// settle reverts a displayed "saved" to idle unless a newer save has been
// scheduled since.
func (s *saver) settle(q uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q == s.seq && s.state == SaveSaved {
		s.state = SaveIdle
		s.revert = nil
	}
}

func (s *saver) stopTimersLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
}
