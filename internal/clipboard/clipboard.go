// Package clipboard declares the system clipboard boundary. Clipboard
// access is a convenience layered on top of a working terminal: failures
// are logged and swallowed, never surfaced.
package clipboard

import "sync"

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteText(text string) error
}

// Memory is an in-process Clipboard, used by tests and headless tooling.
type Memory struct {
	mu   sync.Mutex
	text string
}

// NewMemory creates an empty in-process clipboard.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}

// Text returns the last written text.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}
