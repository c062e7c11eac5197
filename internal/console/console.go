// Package console adapts the controlling TTY into an emulator instance so
// the CLI can attach to a session. Output bytes pass straight through to
// the terminal; the terminal's own renderer does the emulation.
package console

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/danilokhury/termdock/internal/emulator"
)

// detachKey ends an attach without killing the session (Ctrl-]).
const detachKey = 0x1d

// Console is an emulator.Emulator backed by the process TTY.
type Console struct {
	in  *os.File
	out *os.File

	mu       sync.Mutex
	onData   func([]byte)
	onDetach func()
	oldState *term.State
	closed   bool
}

var _ emulator.Emulator = (*Console)(nil)

// New wraps stdin/stdout. Fails when stdin is not a terminal.
func New() (*Console, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("console: stdin is not a terminal")
	}
	return &Console{in: os.Stdin, out: os.Stdout}, nil
}

// OnDetach registers the handler for the detach key.
func (c *Console) OnDetach(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDetach = fn
}

// Start switches the TTY to raw mode and begins forwarding keystrokes.
func (c *Console) Start() error {
	state, err := term.MakeRaw(int(c.in.Fd()))
	if err != nil {
		return fmt.Errorf("console: raw mode: %w", err)
	}
	c.mu.Lock()
	c.oldState = state
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

func (c *Console) readLoop() {
	buf := make([]byte, 1024)
	for {
		n, err := c.in.Read(buf)
		if err != nil {
			return
		}
		data := buf[:n]

		c.mu.Lock()
		onData, onDetach, closed := c.onData, c.onDetach, c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		for i, b := range data {
			if b == detachKey {
				if i > 0 && onData != nil {
					onData(append([]byte(nil), data[:i]...))
				}
				if onDetach != nil {
					onDetach()
				}
				return
			}
		}
		if onData != nil {
			onData(append([]byte(nil), data...))
		}
	}
}

func (c *Console) Write(data []byte) {
	c.out.Write(data)
}

func (c *Console) OnData(fn func(data []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = fn
}

// Resize is a no-op; the user's terminal cannot be resized from here. The
// PTY follows the real size reported by Size.
func (c *Console) Resize(cols, rows int) {}

func (c *Console) Size() (cols, rows int) {
	cols, rows, err := term.GetSize(int(c.out.Fd()))
	if err != nil || cols <= 0 || rows <= 0 {
		return 80, 24
	}
	return cols, rows
}

func (c *Console) Focus() {}

func (c *Console) Selection() string { return "" }

// Dispose restores the TTY. Safe to call more than once.
func (c *Console) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.oldState != nil {
		term.Restore(int(c.in.Fd()), c.oldState)
	}
}
