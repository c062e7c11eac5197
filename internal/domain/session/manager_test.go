package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilokhury/termdock/internal/clipboard"
	"github.com/danilokhury/termdock/internal/domain/window"
	"github.com/danilokhury/termdock/internal/emulator"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
	"github.com/danilokhury/termdock/internal/notify"
	"github.com/danilokhury/termdock/internal/shared/types"
	"github.com/danilokhury/termdock/internal/transport"
)

type fakeGateway struct {
	mu        sync.Mutex
	nextID    int
	live      map[string]bool
	deleted   []string
	createErr error
	listErr   error
}

func newFakeGateway(liveIDs ...string) *fakeGateway {
	g := &fakeGateway{live: make(map[string]bool)}
	for _, id := range liveIDs {
		g.live[id] = true
	}
	return g
}

func (g *fakeGateway) Create(ctx context.Context, profile types.Profile, cols, rows int, cwd string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextID++
	id := fmt.Sprintf("sess-%d", g.nextID)
	g.live[id] = true
	return id, nil
}

func (g *fakeGateway) List(ctx context.Context) ([]types.LiveSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]types.LiveSession, 0, len(g.live))
	for id := range g.live {
		out = append(out, types.LiveSession{ID: id, Profile: types.ProfileShell})
	}
	return out, nil
}

func (g *fakeGateway) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, id)
	delete(g.live, id)
	return nil
}

func (g *fakeGateway) SocketURL(id string) string { return "ws://gateway/sessions/" + id + "/ws" }

func (g *fakeGateway) deletedIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.deleted...)
}

type fakeBinding struct {
	mu      sync.Mutex
	inputs  []string
	resizes [][2]int
	closed  bool
}

func (b *fakeBinding) SendInput(data string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return transport.ErrClosed
	}
	b.inputs = append(b.inputs, data)
	return nil
}

func (b *fakeBinding) SendResize(cols, rows int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return transport.ErrClosed
	}
	b.resizes = append(b.resizes, [2]int{cols, rows})
	return nil
}

func (b *fakeBinding) SendImagePaste([]byte) error            { return nil }
func (b *fakeBinding) SendMemoryDrop(content, t string) error { return nil }

func (b *fakeBinding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBinding) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type memStore struct {
	mu      sync.Mutex
	entries []types.RegistryEntry
	saveErr error
}

func (s *memStore) SaveRegistry(ctx context.Context, entries []types.RegistryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries = append([]types.RegistryEntry(nil), entries...)
	return nil
}

func (s *memStore) LoadRegistry(ctx context.Context) ([]types.RegistryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.RegistryEntry(nil), s.entries...), nil
}

type fixture struct {
	gw       *fakeGateway
	store    *memStore
	mgr      *Manager
	notes    *notify.Recorder
	clip     *clipboard.Memory
	dialErr  error
	mu       sync.Mutex
	bindings map[string]*fakeBinding
	events   map[string]transport.Events
	emus     map[string]*emulator.Recorder
}

func newFixture(t *testing.T, gw *fakeGateway, store *memStore) *fixture {
	t.Helper()
	f := &fixture{
		gw:       gw,
		store:    store,
		notes:    notify.NewRecorder(),
		clip:     clipboard.NewMemory(),
		bindings: make(map[string]*fakeBinding),
		events:   make(map[string]transport.Events),
		emus:     make(map[string]*emulator.Recorder),
	}

	windows := window.NewController(window.DefaultConfig(), logging.NewNop(), monitoring.NewTestMetrics())
	f.mgr = NewManager(Options{
		Gateway:   gw,
		Registry:  NewRegistry(store),
		Windows:   windows,
		Emulators: func() emulator.Emulator { return emulator.NewRecorder(80, 24) },
		Clipboard: f.clip,
		Notifier:  f.notes,
		Logger:    logging.NewNop(),
		Metrics:   monitoring.NewTestMetrics(),
		Dial: func(ctx context.Context, socketURL, sessionID string, emu emulator.Emulator, events transport.Events, opts transport.Options) (Binding, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.dialErr != nil {
				return nil, f.dialErr
			}
			b := &fakeBinding{}
			f.bindings[sessionID] = b
			f.events[sessionID] = events
			f.emus[sessionID] = emu.(*emulator.Recorder)
			return b, nil
		},
	})
	return f
}

func (f *fixture) binding(id string) *fakeBinding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bindings[id]
}

func (f *fixture) fire(id string) transport.Events {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id]
}

func TestOpenHostsDockedSession(t *testing.T) {
	f := newFixture(t, newFakeGateway(), &memStore{})
	ctx := context.Background()

	s, err := f.mgr.Open(ctx, types.ProfileShell, "/tmp")
	require.NoError(t, err)
	assert.Equal(t, types.PresentationDocked, s.Presentation())
	assert.Equal(t, "Shell", s.Label())

	assert.Equal(t, []string{s.ID()}, f.mgr.Windows().DockedOrder())
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, s.Entry(), f.store.entries[0])
	require.NoError(t, f.mgr.Windows().CheckOwnership())
}

func TestOpenRejectsUnknownProfile(t *testing.T) {
	f := newFixture(t, newFakeGateway(), &memStore{})

	_, err := f.mgr.Open(context.Background(), types.Profile("vim"), "")
	assert.Error(t, err)
	assert.Empty(t, f.mgr.Sessions())
}

func TestOpenDialFailureKillsOrphanPTY(t *testing.T) {
	gw := newFakeGateway()
	f := newFixture(t, gw, &memStore{})
	f.dialErr = errors.New("connection refused")

	_, err := f.mgr.Open(context.Background(), types.ProfileShell, "")
	require.Error(t, err)
	assert.Equal(t, []string{"sess-1"}, gw.deletedIDs(), "unreachable PTY must not leak")
	assert.Empty(t, f.store.entries)
}

func TestBootReconnectsIntersectionInOrder(t *testing.T) {
	store := &memStore{entries: []types.RegistryEntry{
		{ID: "a", Profile: types.ProfileShell, Label: "A"},
		{ID: "b", Profile: types.ProfileClaudeCode, Label: "B", Pinned: true},
		{ID: "c", Profile: types.ProfileCodex, Label: "C"},
	}}
	// "a" died while the tab was closed; "x" belongs to someone else.
	gw := newFakeGateway("b", "c", "x")
	f := newFixture(t, gw, store)

	n, err := f.mgr.Boot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sessions := f.mgr.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID())
	assert.Equal(t, "c", sessions[1].ID())
	assert.True(t, sessions[0].Pinned())

	require.Len(t, store.entries, 2)
	assert.Equal(t, "b", store.entries[0].ID)
	assert.Equal(t, "c", store.entries[1].ID)

	// Foreign live sessions are left alone.
	assert.Empty(t, gw.deletedIDs())
}

func TestBootListFailureNeverPrunes(t *testing.T) {
	store := &memStore{entries: []types.RegistryEntry{
		{ID: "a", Profile: types.ProfileShell, Label: "A"},
	}}
	gw := newFakeGateway("a")
	gw.listErr = errors.New("gateway down")
	f := newFixture(t, gw, store)

	_, err := f.mgr.Boot(context.Background())
	require.Error(t, err)
	assert.Len(t, store.entries, 1, "flaky liveness check must not wipe the registry")
}

func TestBootPrunesUnreachableSession(t *testing.T) {
	store := &memStore{entries: []types.RegistryEntry{
		{ID: "a", Profile: types.ProfileShell, Label: "A"},
	}}
	f := newFixture(t, newFakeGateway("a"), store)
	f.dialErr = errors.New("connection refused")

	n, err := f.mgr.Boot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.entries)
}

func TestCloseTearsDownEverywhere(t *testing.T) {
	gw := newFakeGateway()
	f := newFixture(t, gw, &memStore{})
	ctx := context.Background()

	s, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	id := s.ID()

	require.NoError(t, f.mgr.Close(ctx, id))
	assert.True(t, f.binding(id).isClosed())
	assert.Contains(t, gw.deletedIDs(), id)
	assert.Empty(t, f.store.entries)
	assert.Empty(t, f.mgr.Windows().DockedOrder())
	_, ok := f.mgr.Get(id)
	assert.False(t, ok)

	// Idempotent: no second server delete.
	require.NoError(t, f.mgr.Close(ctx, id))
	assert.Len(t, gw.deletedIDs(), 1)
}

func TestCloseDetachedSession(t *testing.T) {
	gw := newFakeGateway()
	f := newFixture(t, gw, &memStore{})
	ctx := context.Background()

	s, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	_, err = f.mgr.Windows().Detach(s.ID())
	require.NoError(t, err)

	require.NoError(t, f.mgr.Close(ctx, s.ID()))
	_, ok := f.mgr.Windows().Get(s.ID())
	assert.False(t, ok, "descriptor must die with the session")
	require.NoError(t, f.mgr.Windows().CheckOwnership())
}

func TestExitKeepsScrollbackInspectable(t *testing.T) {
	gw := newFakeGateway()
	f := newFixture(t, gw, &memStore{})
	ctx := context.Background()

	s, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	id := s.ID()

	f.mu.Lock()
	emu := f.emus[id]
	f.mu.Unlock()
	emu.Write([]byte("$ echo hi\r\nhi\r\n"))

	// The transport closes itself before reporting death.
	require.NoError(t, f.binding(id).Close())
	f.fire(id).OnExit("exit")

	dead, ok := f.mgr.Get(id)
	require.True(t, ok, "dead session must remain inspectable")
	assert.True(t, dead.Dead())
	assert.False(t, emu.Disposed(), "scrollback must stay visible after exit")
	assert.Contains(t, emu.Contents(), "echo hi")
	assert.True(t, errors.Is(dead.Input("x"), transport.ErrClosed), "input is inert")

	// Presentation slot and registry entry survive until an explicit close.
	assert.Equal(t, []string{id}, f.mgr.Windows().DockedOrder())
	require.Len(t, f.mgr.Sessions(), 1)
	require.Len(t, f.store.entries, 1)
	require.Len(t, f.notes.Toasts(), 1)
	assert.Contains(t, f.notes.Toasts()[0], "Session ended")

	// Explicit close tears down everywhere but skips the server delete.
	require.NoError(t, f.mgr.Close(ctx, id))
	_, ok = f.mgr.Get(id)
	assert.False(t, ok)
	assert.True(t, emu.Disposed())
	assert.Empty(t, f.store.entries)
	assert.Empty(t, f.mgr.Windows().DockedOrder())
	assert.Empty(t, gw.deletedIDs(), "the PTY already died, nothing to delete")
}

func TestDisconnectAllKeepsServerAndRegistry(t *testing.T) {
	gw := newFakeGateway()
	f := newFixture(t, gw, &memStore{})
	ctx := context.Background()

	s1, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	s2, err := f.mgr.Open(ctx, types.ProfileGemini, "")
	require.NoError(t, err)

	f.mgr.DisconnectAll()

	assert.Empty(t, f.mgr.Sessions())
	assert.True(t, f.binding(s1.ID()).isClosed())
	assert.True(t, f.binding(s2.ID()).isClosed())
	assert.Empty(t, gw.deletedIDs(), "PTYs must survive a client-side disconnect")
	assert.Len(t, f.store.entries, 2, "registry survives for the restore phase")
}

func TestSetLabelAndPinnedPersist(t *testing.T) {
	f := newFixture(t, newFakeGateway(), &memStore{})
	ctx := context.Background()

	s, err := f.mgr.Open(ctx, types.ProfileClaudeCode, "")
	require.NoError(t, err)

	require.NoError(t, f.mgr.SetLabel(ctx, s.ID(), "deploy review"))
	require.NoError(t, f.mgr.SetPinned(ctx, s.ID(), true))

	assert.Equal(t, "deploy review", s.Label())
	assert.True(t, s.Pinned())
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, "deploy review", f.store.entries[0].Label)
	assert.True(t, f.store.entries[0].Pinned)
}

func TestImageSavedGoesToClipboardNotPTY(t *testing.T) {
	f := newFixture(t, newFakeGateway(), &memStore{})

	s, err := f.mgr.Open(context.Background(), types.ProfileShell, "")
	require.NoError(t, err)
	id := s.ID()

	f.fire(id).OnImageSaved("/saves/img_001.png")

	assert.Equal(t, "/saves/img_001.png", f.clip.Text())
	require.Len(t, f.notes.Toasts(), 1)
	assert.Contains(t, f.notes.Toasts()[0], "img_001.png")

	f.mu.Lock()
	emu := f.emus[id]
	f.mu.Unlock()
	assert.NotContains(t, emu.Contents(), "img_001.png")
	assert.Empty(t, f.binding(id).inputs, "path must not be injected as input")
}

func TestMemorySavedToasts(t *testing.T) {
	f := newFixture(t, newFakeGateway(), &memStore{})

	s, err := f.mgr.Open(context.Background(), types.ProfileShell, "")
	require.NoError(t, err)

	f.fire(s.ID()).OnMemorySaved("/saves/memory_001.md")
	require.Len(t, f.notes.Toasts(), 1)
	assert.Contains(t, f.notes.Toasts()[0], "Memory saved")
}

func TestRefitKeepsEmulatorAndPTYInLockStep(t *testing.T) {
	f := newFixture(t, newFakeGateway(), &memStore{})

	s, err := f.mgr.Open(context.Background(), types.ProfileShell, "")
	require.NoError(t, err)

	s.Refit(120, 40)

	f.mu.Lock()
	emu := f.emus[s.ID()]
	f.mu.Unlock()
	cols, rows := emu.Size()
	assert.Equal(t, 120, cols)
	assert.Equal(t, 40, rows)

	b := f.binding(s.ID())
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.resizes)
	assert.Equal(t, [2]int{120, 40}, b.resizes[len(b.resizes)-1])
}

func TestSessionsFollowRegistryOrder(t *testing.T) {
	f := newFixture(t, newFakeGateway(), &memStore{})
	ctx := context.Background()

	a, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	b, err := f.mgr.Open(ctx, types.ProfileCodex, "")
	require.NoError(t, err)

	sessions := f.mgr.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, a.ID(), sessions[0].ID())
	assert.Equal(t, b.ID(), sessions[1].ID())
}
