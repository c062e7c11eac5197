package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilokhury/termdock/internal/clipboard"
	"github.com/danilokhury/termdock/internal/domain/session"
	"github.com/danilokhury/termdock/internal/domain/window"
	"github.com/danilokhury/termdock/internal/emulator"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
	"github.com/danilokhury/termdock/internal/notify"
	"github.com/danilokhury/termdock/internal/shared/types"
	"github.com/danilokhury/termdock/internal/state"
	"github.com/danilokhury/termdock/internal/transport"
)

type fakeGateway struct {
	mu      sync.Mutex
	nextID  int
	live    map[string]bool
	deleted []string
	listErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{live: make(map[string]bool)}
}

func (g *fakeGateway) Create(ctx context.Context, profile types.Profile, cols, rows int, cwd string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
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

// kill simulates a PTY dying server-side while the client is away.
func (g *fakeGateway) kill(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.live, id)
}

type fakeBinding struct{ closed bool }

func (b *fakeBinding) SendInput(string) error              { return nil }
func (b *fakeBinding) SendResize(int, int) error           { return nil }
func (b *fakeBinding) SendImagePaste([]byte) error         { return nil }
func (b *fakeBinding) SendMemoryDrop(string, string) error { return nil }
func (b *fakeBinding) Close() error                        { b.closed = true; return nil }

type fixture struct {
	gw    *fakeGateway
	store *state.Store
	mgr   *session.Manager
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := state.Open(ctx, t.TempDir()+"/state.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gw := newFakeGateway()
	windows := window.NewController(window.DefaultConfig(), logging.NewNop(), monitoring.NewTestMetrics())
	mgr := session.NewManager(session.Options{
		Gateway:   gw,
		Registry:  session.NewRegistry(store),
		Windows:   windows,
		Emulators: func() emulator.Emulator { return emulator.NewRecorder(80, 24) },
		Clipboard: clipboard.NewMemory(),
		Notifier:  notify.NewRecorder(),
		Logger:    logging.NewNop(),
		Metrics:   monitoring.NewTestMetrics(),
		Dial: func(ctx context.Context, socketURL, sessionID string, emu emulator.Emulator, events transport.Events, opts transport.Options) (session.Binding, error) {
			return &fakeBinding{}, nil
		},
	})

	return &fixture{
		gw:    gw,
		store: store,
		mgr:   mgr,
		svc:   NewService(mgr, store, gw, logging.NewNop(), monitoring.NewTestMetrics()),
	}
}

func TestSnapshotCapturesArrangement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.mgr.Open(ctx, types.ProfileClaudeCode, "")
	require.NoError(t, err)
	s2, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)

	windows := f.mgr.Windows()
	_, err = windows.Detach(s1.ID())
	require.NoError(t, err)
	target := types.Rect{Left: 100, Top: 100, Width: 400, Height: 300}
	require.NoError(t, windows.SetRect(s1.ID(), target))
	require.NoError(t, windows.Minimize(ctx, s1.ID()))
	require.NoError(t, f.mgr.SetPinned(ctx, s2.ID(), true))
	windows.SetPanel(280, true)

	snap := f.svc.Snapshot()
	assert.True(t, strings.HasPrefix(snap.ID.String(), "snap_"))
	assert.NotEqual(t, snap.ID, f.svc.Snapshot().ID, "every capture gets its own id")
	assert.Equal(t, 280, snap.DockedHeight)
	assert.True(t, snap.Visible)

	require.Len(t, snap.Sessions, 2)
	assert.Equal(t, s1.ID(), snap.Sessions[0].ID)
	assert.True(t, snap.Sessions[0].Detached)
	assert.False(t, snap.Sessions[1].Detached)
	assert.True(t, snap.Sessions[1].Pinned)

	require.Len(t, snap.DetachedTabs, 1)
	tab := snap.DetachedTabs[0]
	assert.Equal(t, s1.ID(), tab.SessionID)
	assert.True(t, tab.Minimized)
	assert.Equal(t, target, tab.Rect, "minimized windows snapshot their saved rect, not the pill")
}

func TestRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.mgr.Open(ctx, types.ProfileClaudeCode, "")
	require.NoError(t, err)
	s2, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)

	windows := f.mgr.Windows()
	_, err = windows.Detach(s1.ID())
	require.NoError(t, err)
	target := types.Rect{Left: 100, Top: 100, Width: 400, Height: 300}
	require.NoError(t, windows.SetRect(s1.ID(), target))
	require.NoError(t, windows.Minimize(ctx, s1.ID()))

	snap, err := f.svc.Save(ctx)
	require.NoError(t, err)

	n, err := f.svc.Restore(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// PTYs were never deleted across the cycle.
	assert.Empty(t, f.gw.deleted)

	re1, ok := f.mgr.Get(s1.ID())
	require.True(t, ok)
	assert.Equal(t, types.PresentationMinimized, re1.Presentation())
	w, ok := windows.Get(s1.ID())
	require.True(t, ok)
	require.NotNil(t, w.SavedRect)
	assert.Equal(t, target, *w.SavedRect)

	re2, ok := f.mgr.Get(s2.ID())
	require.True(t, ok)
	assert.Equal(t, types.PresentationDocked, re2.Presentation())
	assert.Equal(t, []string{s2.ID()}, windows.DockedOrder())
	require.NoError(t, windows.CheckOwnership())

	// Restoring the minimized window still lands on the exact saved rect.
	require.NoError(t, windows.Restore(ctx, s1.ID()))
	w, _ = windows.Get(s1.ID())
	assert.Equal(t, target, w.Rect)
}

func TestRestoreSkipsDeadSessionsSilently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.mgr.Open(ctx, types.ProfileClaudeCode, "")
	require.NoError(t, err)
	s2, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)

	snap, err := f.svc.Save(ctx)
	require.NoError(t, err)

	// The user worked in another workspace and s2's process exited there.
	f.gw.kill(s2.ID())

	n, err := f.svc.Restore(ctx, snap)
	require.NoError(t, err, "a stale snapshot is not an error")
	assert.Equal(t, 1, n)

	_, ok := f.mgr.Get(s1.ID())
	assert.True(t, ok)
	_, ok = f.mgr.Get(s2.ID())
	assert.False(t, ok)

	// The registry only holds what actually came back.
	entries, err := f.store.LoadRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, s1.ID(), entries[0].ID)
}

func TestRestoreWorkspaceSwitchLeavesOtherPTYsAlive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	snap, err := f.svc.Save(ctx)
	require.NoError(t, err)

	// A second session opened after the save is not in the snapshot.
	s2, err := f.mgr.Open(ctx, types.ProfileCodex, "")
	require.NoError(t, err)

	n, err := f.svc.Restore(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := f.mgr.Get(s1.ID())
	assert.True(t, ok)
	_, ok = f.mgr.Get(s2.ID())
	assert.False(t, ok, "sessions outside the snapshot are not re-adopted")

	// Its PTY survives server-side; only the client walked away.
	assert.Empty(t, f.gw.deleted)
	f.gw.mu.Lock()
	alive := f.gw.live[s2.ID()]
	f.gw.mu.Unlock()
	assert.True(t, alive)
}

func TestRestoreLivenessFailureLeavesWorkspaceAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	snap, err := f.svc.Save(ctx)
	require.NoError(t, err)

	f.gw.listErr = errors.New("gateway down")
	_, err = f.svc.Restore(ctx, snap)
	require.Error(t, err)

	// Nothing was disconnected.
	_, ok := f.mgr.Get(s1.ID())
	assert.True(t, ok)
}

func TestRestoreLast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RestoreLast(ctx)
	assert.True(t, errors.Is(err, state.ErrNotFound))

	s1, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	_, err = f.svc.Save(ctx)
	require.NoError(t, err)

	n, err := f.svc.RestoreLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := f.mgr.Get(s1.ID())
	assert.True(t, ok)

	require.NoError(t, f.svc.Clear(ctx))
	_, err = f.svc.RestoreLast(ctx)
	assert.True(t, errors.Is(err, state.ErrNotFound))
}

func TestRestorePanelState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Open(ctx, types.ProfileShell, "")
	require.NoError(t, err)
	f.mgr.Windows().SetPanel(320, false)

	snap, err := f.svc.Save(ctx)
	require.NoError(t, err)

	f.mgr.Windows().SetPanel(100, true)
	_, err = f.svc.Restore(ctx, snap)
	require.NoError(t, err)

	h, visible := f.mgr.Windows().Panel()
	assert.Equal(t, 320, h)
	assert.False(t, visible)
}

func TestSavePersistsPanelSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mgr.Windows().SetPanel(260, false)
	_, err := f.svc.Save(ctx)
	require.NoError(t, err)

	// The panel survives a snapshot clear and comes back on its own.
	require.NoError(t, f.svc.Clear(ctx))
	f.mgr.Windows().SetPanel(100, true)
	require.NoError(t, f.svc.RestorePanel(ctx))

	h, visible := f.mgr.Windows().Panel()
	assert.Equal(t, 260, h)
	assert.False(t, visible)
}

func TestRestorePanelNothingStoredIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mgr.Windows().SetPanel(180, true)
	require.NoError(t, f.svc.RestorePanel(ctx))

	h, visible := f.mgr.Windows().Panel()
	assert.Equal(t, 180, h)
	assert.True(t, visible)
}

func TestRestorePinnedWindowStaysPinned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.mgr.Open(ctx, types.ProfileClaudeCode, "")
	require.NoError(t, err)
	require.NoError(t, f.mgr.SetPinned(ctx, s1.ID(), true))
	_, err = f.mgr.Windows().Detach(s1.ID())
	require.NoError(t, err)

	snap, err := f.svc.Save(ctx)
	require.NoError(t, err)
	_, err = f.svc.Restore(ctx, snap)
	require.NoError(t, err)

	w, ok := f.mgr.Windows().Get(s1.ID())
	require.True(t, ok)
	assert.True(t, w.Pinned)
	re1, _ := f.mgr.Get(s1.ID())
	assert.True(t, re1.Pinned())
}
