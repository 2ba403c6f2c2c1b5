// Package clipboard adapts the system clipboard for the session guard and
// provides an in-process fallback where no system clipboard exists.
package clipboard

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned by Memory when configured to fail.
var ErrUnavailable = errors.New("clipboard unavailable")

type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// System is the operating system clipboard.
type System struct{}

func (System) ReadAll() (string, error) { return clipboard.ReadAll() }

func (System) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Memory is a process-local clipboard.
type Memory struct {
	mu        sync.Mutex
	text      string
	failRead  bool
	failWrite bool
	writes    int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) ReadAll() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return "", ErrUnavailable
	}
	return m.text, nil
}

func (m *Memory) WriteAll(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return ErrUnavailable
	}
	m.text = text
	m.writes++
	return nil
}

// Set replaces the content as another application would, bypassing
// failure injection.
func (m *Memory) Set(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
}

// Text returns the content, bypassing failure injection.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Writes counts successful WriteAll calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailReads makes ReadAll fail while on is true.
func (m *Memory) FailReads(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = on
}

// FailWrites makes WriteAll fail while on is true.
func (m *Memory) FailWrites(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = on
}

// Default returns the system clipboard, or a Memory clipboard when the
// platform has no supported clipboard utility.
func Default() Clipboard {
	if clipboard.Unsupported {
		return NewMemory()
	}
	return System{}
}
