package layout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/domain/session"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
	"github.com/danilokhury/termdock/internal/shared/id"
	"github.com/danilokhury/termdock/internal/shared/types"
	"github.com/danilokhury/termdock/internal/state"
)

// SnapshotStore persists layout snapshots and the docked-panel state.
// Satisfied by *state.Store.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *types.LayoutSnapshot) error
	LoadSnapshot(ctx context.Context) (*types.LayoutSnapshot, error)
	ClearSnapshot(ctx context.Context) error
	SavePanel(ctx context.Context, height int, visible bool) error
	LoadPanel(ctx context.Context) (height int, visible bool, err error)
}

// Liveness is the single-shot live-session check used to filter snapshots.
// Satisfied by *gateway.Client.
type Liveness interface {
	List(ctx context.Context) ([]types.LiveSession, error)
}

// Service captures and restores full workspace layouts.
type Service struct {
	mgr      *session.Manager
	store    SnapshotStore
	liveness Liveness
	ids      *id.Generator
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewService creates a layout service.
func NewService(mgr *session.Manager, store SnapshotStore, liveness Liveness, log *logging.Logger, metrics *monitoring.Metrics) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{
		mgr:      mgr,
		store:    store,
		liveness: liveness,
		ids:      id.Default(),
		log:      log.Named("layout"),
		metrics:  metrics,
	}
}

// Snapshot serializes the current arrangement: sessions in registry order,
// floating geometry, pins, minimize state, and the panel. For a minimized
// window the saved pre-minimize rect is captured, not the pill.
func (s *Service) Snapshot() *types.LayoutSnapshot {
	windows := s.mgr.Windows()
	height, visible := windows.Panel()

	snap := &types.LayoutSnapshot{
		ID:           s.ids.SnapshotID(),
		DockedHeight: height,
		Visible:      visible,
	}

	for _, sess := range s.mgr.Sessions() {
		detached := sess.Presentation() != types.PresentationDocked
		snap.Sessions = append(snap.Sessions, types.SessionSnapshot{
			ID:       sess.ID(),
			Profile:  sess.Profile(),
			Label:    sess.Label(),
			Pinned:   sess.Pinned(),
			Detached: detached,
		})

		w, ok := windows.Get(sess.ID())
		if !ok {
			continue
		}
		rect := w.Rect
		if w.Minimized && w.SavedRect != nil {
			rect = *w.SavedRect
		}
		snap.DetachedTabs = append(snap.DetachedTabs, types.WindowSnapshot{
			SessionID: sess.ID(),
			Rect:      rect,
			Pinned:    w.Pinned,
			Label:     sess.Label(),
			Minimized: w.Minimized,
		})
	}
	return snap
}

// Save captures the current layout and persists it.
func (s *Service) Save(ctx context.Context) (*types.LayoutSnapshot, error) {
	snap := s.Snapshot()
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("save layout: %w", err)
	}
	// Panel state is persisted separately so it survives a snapshot clear
	// and can be re-applied on boot without replaying the whole layout.
	if err := s.store.SavePanel(ctx, snap.DockedHeight, snap.Visible); err != nil {
		return nil, fmt.Errorf("save layout: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SnapshotsSaved.Inc()
	}
	s.log.Info("layout saved",
		zap.String("snapshot_id", snap.ID.String()),
		zap.Int("sessions", len(snap.Sessions)),
		zap.Int("windows", len(snap.DetachedTabs)))
	return snap, nil
}

// RestorePanel re-applies the persisted docked-panel height and visibility.
// Nothing stored is not an error; the panel keeps its defaults.
func (s *Service) RestorePanel(ctx context.Context) error {
	height, visible, err := s.store.LoadPanel(ctx)
	if errors.Is(err, state.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore panel: %w", err)
	}
	s.mgr.Windows().SetPanel(height, visible)
	return nil
}

// Restore applies a snapshot. Returns how many sessions were re-adopted.
// The liveness check runs before anything is torn down, so a dead gateway
// leaves the current workspace untouched.
func (s *Service) Restore(ctx context.Context, snap *types.LayoutSnapshot) (int, error) {
	live, err := s.liveness.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore layout: %w", err)
	}
	alive := make(map[string]bool, len(live))
	for _, l := range live {
		alive[l.ID] = true
	}

	s.mgr.DisconnectAll()
	if err := s.mgr.ResetRegistry(ctx, nil); err != nil {
		return 0, fmt.Errorf("restore layout: %w", err)
	}

	windowFor := make(map[string]types.WindowSnapshot, len(snap.DetachedTabs))
	for _, w := range snap.DetachedTabs {
		windowFor[w.SessionID] = w
	}

	adopted := 0
	for _, entry := range snap.Sessions {
		if !alive[entry.ID] {
			s.log.Debug("skipping dead session", zap.String("session_id", entry.ID))
			continue
		}
		sess, err := s.mgr.Adopt(ctx, types.RegistryEntry{
			ID:      entry.ID,
			Profile: entry.Profile,
			Label:   entry.Label,
			Pinned:  entry.Pinned,
		})
		if err != nil {
			// Died between the list and the dial; same as never alive.
			s.log.Warn("re-adopt failed, skipping",
				zap.String("session_id", entry.ID), zap.Error(err))
			continue
		}
		adopted++

		if !entry.Detached {
			continue
		}
		if err := s.replayWindow(ctx, sess.ID(), windowFor[sess.ID()]); err != nil {
			s.log.Warn("window replay failed",
				zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}

	s.mgr.Windows().SetPanel(snap.DockedHeight, snap.Visible)

	if s.metrics != nil {
		s.metrics.SnapshotsRestored.Inc()
	}
	s.log.Info("layout restored",
		zap.Int("adopted", adopted),
		zap.Int("skipped", len(snap.Sessions)-adopted))
	return adopted, nil
}

// RestoreLast restores the persisted snapshot, if one exists.
func (s *Service) RestoreLast(ctx context.Context) (int, error) {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore layout: %w", err)
	}
	return s.Restore(ctx, snap)
}

// Clear drops the persisted snapshot.
func (s *Service) Clear(ctx context.Context) error {
	return s.store.ClearSnapshot(ctx)
}

// replayWindow re-applies one floating window: detach first, then exact
// geometry, then minimize. The ordering matters; minimize snapshots the
// rect it finds, so geometry must land before the pill collapses.
func (s *Service) replayWindow(ctx context.Context, sid string, ws types.WindowSnapshot) error {
	windows := s.mgr.Windows()
	if _, err := windows.Detach(sid); err != nil {
		return err
	}
	if ws.SessionID != "" {
		if err := windows.SetRect(sid, ws.Rect); err != nil {
			return err
		}
	}
	if ws.Minimized {
		return windows.Minimize(ctx, sid)
	}
	return nil
}
