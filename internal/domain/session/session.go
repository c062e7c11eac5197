package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/emulator"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/shared/types"
	"github.com/danilokhury/termdock/internal/transport"
)

// Binding is the outbound half of a session's transport. Satisfied by
// *transport.Binding; tests substitute fakes.
type Binding interface {
	SendInput(data string) error
	SendResize(cols, rows int) error
	SendImagePaste(data []byte) error
	SendMemoryDrop(content, title string) error
	Close() error
}

// Session is one live terminal: a server PTY id, the emulator rendering it,
// and the transport between them. The emulator instance is created once and
// survives every presentation change; only the binding is replaced across
// reconnects.
type Session struct {
	id      string
	profile types.Profile
	created time.Time
	emu     emulator.Emulator
	log     *logging.Logger

	mu           sync.Mutex
	label        string
	pinned       bool
	presentation types.Presentation
	binding      Binding
	dead         bool
}

// ID returns the server session id.
func (s *Session) ID() string { return s.id }

// Profile returns the launch profile.
func (s *Session) Profile() types.Profile { return s.profile }

// CreatedAt returns when the client first saw this session.
func (s *Session) CreatedAt() time.Time { return s.created }

// Label returns the tab label.
func (s *Session) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// Pinned reports whether the session is pinned.
func (s *Session) Pinned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// Presentation returns the current presentation state.
func (s *Session) Presentation() types.Presentation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presentation
}

// SetPresentation records the presentation state. Only the window
// controller calls this.
func (s *Session) SetPresentation(p types.Presentation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presentation = p
}

// Dead reports whether the server-side PTY is known to be gone.
func (s *Session) Dead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}

// Refit resizes the emulator grid and reports the new dimensions to the
// remote PTY in the same turn, keeping both sides in lock-step.
func (s *Session) Refit(cols, rows int) {
	s.emu.Resize(cols, rows)
	if b := s.currentBinding(); b != nil {
		if err := b.SendResize(cols, rows); err != nil && !errors.Is(err, transport.ErrClosed) {
			s.log.Debug("resize send failed", zap.Error(err))
		}
	}
}

// Focus gives the emulator keyboard focus.
func (s *Session) Focus() {
	s.emu.Focus()
}

// Input forwards raw input to the PTY.
func (s *Session) Input(data string) error {
	b := s.currentBinding()
	if b == nil {
		return transport.ErrClosed
	}
	return b.SendInput(data)
}

// PasteImage uploads pasted image bytes for server-side saving.
func (s *Session) PasteImage(data []byte) error {
	b := s.currentBinding()
	if b == nil {
		return transport.ErrClosed
	}
	return b.SendImagePaste(data)
}

// DropMemory uploads a dropped memory document.
func (s *Session) DropMemory(content, title string) error {
	b := s.currentBinding()
	if b == nil {
		return transport.ErrClosed
	}
	return b.SendMemoryDrop(content, title)
}

// Selection returns the emulator's current text selection.
func (s *Session) Selection() string {
	return s.emu.Selection()
}

// Entry renders the session as its persisted registry form.
func (s *Session) Entry() types.RegistryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.RegistryEntry{
		ID:      s.id,
		Profile: s.profile,
		Label:   s.label,
		Pinned:  s.pinned,
	}
}

func (s *Session) currentBinding() Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

func (s *Session) setBinding(b Binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binding = b
}

func (s *Session) markDead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = true
}

func (s *Session) setLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

func (s *Session) setPinned(pinned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = pinned
}
