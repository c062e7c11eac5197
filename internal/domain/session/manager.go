package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/clipboard"
	"github.com/danilokhury/termdock/internal/domain/window"
	"github.com/danilokhury/termdock/internal/emulator"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
	"github.com/danilokhury/termdock/internal/notify"
	"github.com/danilokhury/termdock/internal/shared/types"
	"github.com/danilokhury/termdock/internal/transport"
)

// Gateway is the manager's view of the session server. Satisfied by
// *gateway.Client.
type Gateway interface {
	Create(ctx context.Context, profile types.Profile, cols, rows int, cwd string) (string, error)
	List(ctx context.Context) ([]types.LiveSession, error)
	Delete(ctx context.Context, sessionID string) error
	SocketURL(sessionID string) string
}

// DialFunc opens the transport for one session. The default wraps
// transport.Open; tests substitute in-memory bindings.
type DialFunc func(ctx context.Context, socketURL, sessionID string, emu emulator.Emulator, events transport.Events, opts transport.Options) (Binding, error)

// Options wires a Manager's collaborators.
type Options struct {
	Gateway   Gateway
	Registry  *Registry
	Windows   *window.Controller
	Emulators emulator.Factory
	Clipboard clipboard.Clipboard
	Notifier  notify.Notifier
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
	Dial      DialFunc

	// Initial PTY grid for new sessions.
	Cols int
	Rows int
}

// Manager owns every live session: creation, reconnect, registry
// persistence, and teardown.
type Manager struct {
	gateway  Gateway
	registry *Registry
	windows  *window.Controller
	newEmu   emulator.Factory
	clip     clipboard.Clipboard
	notifier notify.Notifier
	log      *logging.Logger
	metrics  *monitoring.Metrics
	dial     DialFunc
	cols     int
	rows     int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager from Options.
func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	dial := opts.Dial
	if dial == nil {
		dial = func(ctx context.Context, socketURL, sessionID string, emu emulator.Emulator, events transport.Events, topts transport.Options) (Binding, error) {
			return transport.Open(ctx, socketURL, sessionID, emu, events, topts)
		}
	}
	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &Manager{
		gateway:  opts.Gateway,
		registry: opts.Registry,
		windows:  opts.Windows,
		newEmu:   opts.Emulators,
		clip:     opts.Clipboard,
		notifier: opts.Notifier,
		log:      log.Named("session"),
		metrics:  opts.Metrics,
		dial:     dial,
		cols:     cols,
		rows:     rows,
		sessions: make(map[string]*Session),
	}
}

// Windows exposes the presentation controller.
func (m *Manager) Windows() *window.Controller { return m.windows }

// Open creates a fresh server PTY for the profile and hosts it docked.
func (m *Manager) Open(ctx context.Context, profile types.Profile, cwd string) (*Session, error) {
	if !profile.Valid() {
		return nil, fmt.Errorf("open session: unknown profile %q", profile)
	}

	id, err := m.gateway.Create(ctx, profile, m.cols, m.rows, cwd)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s, err := m.host(ctx, types.RegistryEntry{
		ID:      id,
		Profile: profile,
		Label:   profile.DefaultLabel(),
	})
	if err != nil {
		// The PTY exists but we cannot reach it; kill it rather than leak.
		if derr := m.gateway.Delete(context.WithoutCancel(ctx), id); derr != nil {
			m.log.Warn("orphan cleanup failed", zap.String("session_id", id), zap.Error(derr))
		}
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.SessionsOpened.Inc()
	}
	return s, nil
}

// Adopt hosts a session that already exists on the server, using the given
// persisted identity. Used by boot reconciliation and snapshot restore.
func (m *Manager) Adopt(ctx context.Context, entry types.RegistryEntry) (*Session, error) {
	s, err := m.host(ctx, entry)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.Reconnects.Inc()
	}
	return s, nil
}

// Boot reconciles the persisted registry against the server's live list:
// entries still alive reconnect in persisted order, the rest are pruned.
// When the liveness check itself fails nothing is pruned; a flaky gateway
// must not wipe the registry.
func (m *Manager) Boot(ctx context.Context) (int, error) {
	entries, err := m.registry.Load(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	live, err := m.gateway.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("boot reconcile: %w", err)
	}
	alive := make(map[string]bool, len(live))
	for _, l := range live {
		alive[l.ID] = true
	}

	kept := make([]types.RegistryEntry, 0, len(entries))
	for _, entry := range entries {
		if !alive[entry.ID] {
			m.log.Info("pruning dead session", zap.String("session_id", entry.ID))
			continue
		}
		if _, err := m.hostSession(ctx, entry); err != nil {
			// Listed as alive but unreachable; it died between the list and
			// the dial. Prune it like the rest.
			m.log.Warn("reconnect failed, pruning",
				zap.String("session_id", entry.ID), zap.Error(err))
			continue
		}
		kept = append(kept, entry)
		if m.metrics != nil {
			m.metrics.Reconnects.Inc()
		}
	}

	if err := m.registry.Replace(ctx, kept); err != nil {
		return len(kept), err
	}
	return len(kept), nil
}

// Close tears a session down from any presentation state: transport,
// emulator, window, registry entry, and the server PTY. Idempotent. The
// server delete is best-effort; the client side is already committed.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if b := s.currentBinding(); b != nil {
		b.Close()
	}
	s.emu.Dispose()
	m.windows.Remove(id)

	if err := m.registry.Remove(ctx, id); err != nil {
		m.log.Warn("registry remove failed", zap.String("session_id", id), zap.Error(err))
	}

	if !s.Dead() {
		if err := m.gateway.Delete(ctx, id); err != nil {
			m.log.Warn("server delete failed", zap.String("session_id", id), zap.Error(err))
		}
	}

	if m.metrics != nil {
		m.metrics.SessionsClosed.Inc()
		m.metrics.SessionsActive.Dec()
	}
	return nil
}

// DisconnectAll drops every client-side session without touching the server
// PTYs or the persisted registry. This is the first phase of a snapshot
// restore: the processes keep running and are re-adopted afterwards.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if b := s.currentBinding(); b != nil {
			b.Close()
		}
		s.emu.Dispose()
		m.windows.Remove(s.ID())
		if m.metrics != nil {
			m.metrics.SessionsActive.Dec()
		}
	}
}

// ResetRegistry replaces the persisted registry wholesale. Snapshot restore
// clears it before re-adopting survivors so adoption rebuilds it in
// snapshot order.
func (m *Manager) ResetRegistry(ctx context.Context, entries []types.RegistryEntry) error {
	return m.registry.Replace(ctx, entries)
}

// Get returns a hosted session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns hosted sessions in registry order.
func (m *Manager) Sessions() []*Session {
	entries := m.registry.Entries()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(entries))
	for _, e := range entries {
		if s, ok := m.sessions[e.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// SetLabel renames a session's tab and persists it.
func (m *Manager) SetLabel(ctx context.Context, id, label string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("set label: unknown session %s", id)
	}
	s.setLabel(label)
	return m.registry.Update(ctx, id, func(e *types.RegistryEntry) { e.Label = label })
}

// SetPinned toggles the pin flag on the session, its floating window if one
// exists, and the persisted registry entry.
func (m *Manager) SetPinned(ctx context.Context, id string, pinned bool) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("set pinned: unknown session %s", id)
	}
	s.setPinned(pinned)
	m.windows.SetPinned(id, pinned)
	return m.registry.Update(ctx, id, func(e *types.RegistryEntry) { e.Pinned = pinned })
}

// host builds and connects a session, then records it in the registry and
// docks it.
func (m *Manager) host(ctx context.Context, entry types.RegistryEntry) (*Session, error) {
	s, err := m.hostSession(ctx, entry)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Add(ctx, entry); err != nil {
		// The terminal works; losing the durable entry only costs survival
		// across a reload.
		m.log.Warn("registry add failed", zap.String("session_id", entry.ID), zap.Error(err))
	}
	return s, nil
}

// hostSession builds and connects a session without registry writes.
func (m *Manager) hostSession(ctx context.Context, entry types.RegistryEntry) (*Session, error) {
	emu := m.newEmu()
	emu.Resize(m.cols, m.rows)

	s := &Session{
		id:           entry.ID,
		profile:      entry.Profile,
		created:      time.Now(),
		emu:          emu,
		log:          m.log.With(zap.String("session_id", entry.ID)),
		label:        entry.Label,
		pinned:       entry.Pinned,
		presentation: types.PresentationDocked,
	}

	events := transport.Events{
		OnExit:        func(reason string) { m.onExit(s, reason) },
		OnImageSaved:  func(path string) { m.onImageSaved(s, path) },
		OnMemorySaved: func(path string) { m.onMemorySaved(s, path) },
	}
	b, err := m.dial(ctx, m.gateway.SocketURL(entry.ID), entry.ID, emu, events, transport.Options{
		Logger:  m.log,
		Metrics: m.metrics,
	})
	if err != nil {
		emu.Dispose()
		return nil, fmt.Errorf("attach session %s: %w", entry.ID, err)
	}
	s.setBinding(b)

	m.mu.Lock()
	m.sessions[entry.ID] = s
	m.mu.Unlock()

	if err := m.windows.Add(s); err != nil {
		m.mu.Lock()
		delete(m.sessions, entry.ID)
		m.mu.Unlock()
		b.Close()
		emu.Dispose()
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.SessionsActive.Inc()
	}
	return s, nil
}

// onExit handles provable session death reported by the transport. The
// session stays hosted: the binding is already inert, so input fails, but
// the emulator keeps its scrollback visible for inspection. An explicit
// Close later tears it down, and skips the server delete via Dead.
func (m *Manager) onExit(s *Session, reason string) {
	s.markDead()

	m.mu.Lock()
	_, hosted := m.sessions[s.ID()]
	m.mu.Unlock()
	if !hosted {
		return
	}

	m.log.Info("session died",
		zap.String("session_id", s.ID()), zap.String("reason", reason))
	if m.metrics != nil {
		m.metrics.SessionsDead.Inc()
	}
	m.toast(fmt.Sprintf("Session ended: %s (%s)", s.Label(), reason))
}

// onImageSaved copies the saved path to the clipboard instead of injecting
// it into the PTY, where pasted-image text corrupts TUI rendering.
func (m *Manager) onImageSaved(s *Session, path string) {
	if m.clip != nil {
		if err := m.clip.WriteText(path); err != nil {
			m.log.Debug("clipboard write failed", zap.Error(err))
		}
	}
	m.toast(fmt.Sprintf("Image saved: %s (path copied)", path))
}

func (m *Manager) onMemorySaved(s *Session, path string) {
	m.toast(fmt.Sprintf("Memory saved: %s", path))
}

func (m *Manager) toast(message string) {
	if m.notifier != nil {
		m.notifier.Toast(message)
	}
}
