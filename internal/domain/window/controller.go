package window

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
	"github.com/danilokhury/termdock/internal/shared/id"
	"github.com/danilokhury/termdock/internal/shared/types"
)

// pinnedZ sits above any value zTop can reach in practice.
const pinnedZ = 1 << 20

var (
	// ErrUnknownSession means the session is not hosted by this controller.
	ErrUnknownSession = errors.New("window: unknown session")

	// ErrBadTransition means the session is not in the state the requested
	// transition starts from.
	ErrBadTransition = errors.New("window: invalid transition")

	// ErrPointerBusy means another drag or resize already owns the pointer.
	ErrPointerBusy = errors.New("window: pointer operation in progress")

	// ErrPinned means the window rejects geometry changes while pinned.
	ErrPinned = errors.New("window: window is pinned")
)

// Controller owns presentation state for all hosted sessions: the docked tab
// order, the floating window descriptors, the panel, and the single shared
// pointer operation.
type Controller struct {
	mu  sync.Mutex
	cfg Config

	logger   *logging.Logger
	metrics  *monitoring.Metrics
	animator Animator
	ids      *id.Generator

	surfaces map[string]Surface
	windows  map[string]*Window
	docked   []string
	active   string

	zTop    int
	detachN int
	pointer *pointerOp

	panelHeight  int
	panelVisible bool
}

// NewController creates an empty controller.
func NewController(cfg Config, logger *logging.Logger, metrics *monitoring.Metrics) *Controller {
	if cfg.CellWidth <= 0 || cfg.CellHeight <= 0 {
		def := DefaultConfig()
		cfg.CellWidth, cfg.CellHeight = def.CellWidth, def.CellHeight
	}
	return &Controller{
		cfg:          cfg,
		logger:       logger.Named("window"),
		metrics:      metrics,
		animator:     Instant{},
		ids:          id.Default(),
		surfaces:     make(map[string]Surface),
		windows:      make(map[string]*Window),
		panelVisible: true,
	}
}

// SetAnimator swaps the minimize/restore animator. Not safe to call once
// transitions are running.
func (c *Controller) SetAnimator(a Animator) {
	c.animator = a
}

// Add hosts a new session in the dock and makes it the active tab.
func (c *Controller) Add(s Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sid := s.ID()
	if _, ok := c.surfaces[sid]; ok {
		return fmt.Errorf("%w: %s already hosted", ErrBadTransition, sid)
	}

	c.surfaces[sid] = s
	c.docked = append(c.docked, sid)
	c.active = sid
	s.SetPresentation(types.PresentationDocked)
	return nil
}

// Remove drops a session from the controller. Valid from any state and
// idempotent; closing a window never needs a detour through docking.
func (c *Controller) Remove(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.surfaces[sid]; !ok {
		return
	}
	// Window descriptor and map entry go in the same critical section so no
	// caller can observe a closed session that still owns a window.
	delete(c.windows, sid)
	c.removeDockedLocked(sid)
	delete(c.surfaces, sid)
	if c.pointer != nil && c.pointer.sessionID == sid {
		c.pointer = nil
	}
}

// Detach pops the active docked session out into a floating window and
// returns a copy of the new descriptor.
func (c *Controller) Detach(sid string) (Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.surfaces[sid]
	if !ok {
		return Window{}, fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	if s.Presentation() != types.PresentationDocked {
		return Window{}, fmt.Errorf("%w: detach requires docked, session %s is %s",
			ErrBadTransition, sid, s.Presentation())
	}

	c.removeDockedLocked(sid)

	w := &Window{
		ID:        c.ids.WindowID(),
		SessionID: sid,
		Rect:      c.cascadeRectLocked(),
		Pinned:    s.Pinned(),
	}
	if w.Pinned {
		w.Z = pinnedZ
	} else {
		c.zTop++
		w.Z = c.zTop
	}
	c.windows[sid] = w
	c.detachN++

	s.SetPresentation(types.PresentationDetached)
	c.recordTransition(types.PresentationDocked, types.PresentationDetached)

	cols, rows := c.cfg.cells(w.Rect)
	s.Refit(cols, rows)
	s.Focus()

	c.logger.Debug("session detached",
		zap.String("session_id", sid),
		zap.String("window_id", string(w.ID)))
	return w.clone(), nil
}

// Dock returns a floating window to the panel. The descriptor is destroyed,
// the session becomes the active tab, and a hidden panel is forced visible
// so the session cannot land somewhere the user cannot see.
func (c *Controller) Dock(sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.surfaces[sid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	if s.Presentation() != types.PresentationDetached {
		return fmt.Errorf("%w: dock requires detached, session %s is %s",
			ErrBadTransition, sid, s.Presentation())
	}

	delete(c.windows, sid)
	c.docked = append(c.docked, sid)
	c.active = sid
	if !c.panelVisible {
		c.panelVisible = true
	}

	s.SetPresentation(types.PresentationDocked)
	c.recordTransition(types.PresentationDetached, types.PresentationDocked)
	s.Focus()
	return nil
}

// Minimize collapses a detached window to a pill. Geometry is saved first so
// the window can only ever reappear where it was. The animation runs under a
// hard timeout; on expiry the state still commits.
func (c *Controller) Minimize(ctx context.Context, sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, w, err := c.detachedLocked(sid)
	if err != nil {
		return err
	}
	if w.Minimized {
		return fmt.Errorf("%w: session %s already minimized", ErrBadTransition, sid)
	}

	saved := w.Rect
	w.SavedRect = &saved

	c.animate(ctx, "minimize", func(actx context.Context) error {
		return c.animator.Minimize(actx, w.Rect)
	})

	w.Minimized = true
	s.SetPresentation(types.PresentationMinimized)
	c.recordTransition(types.PresentationDetached, types.PresentationMinimized)
	return nil
}

// Restore expands a minimized window back to its saved geometry and refits
// the terminal to it.
func (c *Controller) Restore(ctx context.Context, sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.surfaces[sid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	w := c.windows[sid]
	if s.Presentation() != types.PresentationMinimized || w == nil || !w.Minimized {
		return fmt.Errorf("%w: restore requires minimized, session %s is %s",
			ErrBadTransition, sid, s.Presentation())
	}

	if w.SavedRect != nil {
		w.Rect = *w.SavedRect
		w.SavedRect = nil
	}

	c.animate(ctx, "restore", func(actx context.Context) error {
		return c.animator.Restore(actx, w.Rect)
	})

	w.Minimized = false
	s.SetPresentation(types.PresentationDetached)
	c.recordTransition(types.PresentationMinimized, types.PresentationDetached)
	c.bringToFrontLocked(w)

	cols, rows := c.cfg.cells(w.Rect)
	s.Refit(cols, rows)
	s.Focus()
	return nil
}

// BringToFront raises a floating window. Pinned windows keep their fixed
// elevated layer and ignore the request.
func (c *Controller) BringToFront(sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[sid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	c.bringToFrontLocked(w)
	return nil
}

// SetRect applies geometry directly, clamped to minimums. On a minimized
// window the saved rect is updated instead so the pending restore lands
// where the caller asked.
func (c *Controller) SetRect(sid string, r types.Rect) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[sid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}

	r = c.clampRect(r)
	if w.Minimized {
		w.SavedRect = &r
		return nil
	}
	w.Rect = r
	if s, ok := c.surfaces[sid]; ok {
		cols, rows := c.cfg.cells(r)
		s.Refit(cols, rows)
	}
	return nil
}

// SetPinned updates the pin flag on the floating descriptor, if one exists.
// The session-level flag is the caller's to persist.
func (c *Controller) SetPinned(sid string, pinned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[sid]
	if !ok {
		return
	}
	w.Pinned = pinned
	if pinned {
		w.Z = pinnedZ
	} else {
		c.zTop++
		w.Z = c.zTop
	}
}

// Activate selects a docked tab.
func (c *Controller) Activate(sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.surfaces[sid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	if s.Presentation() != types.PresentationDocked {
		return fmt.Errorf("%w: activate requires docked, session %s is %s",
			ErrBadTransition, sid, s.Presentation())
	}
	c.active = sid
	s.Focus()
	return nil
}

// ActiveDocked returns the selected dock tab, if any.
func (c *Controller) ActiveDocked() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// DockedOrder returns the dock tab order, left to right.
func (c *Controller) DockedOrder() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.docked...)
}

// Get returns a copy of the floating descriptor for a session.
func (c *Controller) Get(sid string) (Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[sid]
	if !ok {
		return Window{}, false
	}
	return w.clone(), true
}

// Windows returns copies of all floating descriptors, back to front.
func (c *Controller) Windows() []Window {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Window, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, w.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

// SetPanel records dock panel height and visibility.
func (c *Controller) SetPanel(height int, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panelHeight = height
	c.panelVisible = visible
}

// Panel reports dock panel height and visibility.
func (c *Controller) Panel() (height int, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panelHeight, c.panelVisible
}

// CheckOwnership verifies the exclusivity invariant across every hosted
// session. Tests call it after each transition.
func (c *Controller) CheckOwnership() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	inDock := make(map[string]bool, len(c.docked))
	for _, sid := range c.docked {
		if inDock[sid] {
			return fmt.Errorf("session %s appears twice in dock order", sid)
		}
		inDock[sid] = true
		if _, ok := c.surfaces[sid]; !ok {
			return fmt.Errorf("dock order references unhosted session %s", sid)
		}
	}
	if c.active != "" && !inDock[c.active] {
		return fmt.Errorf("active tab %s is not in dock order", c.active)
	}

	for sid, s := range c.surfaces {
		w := c.windows[sid]
		switch p := s.Presentation(); p {
		case types.PresentationDocked:
			if !inDock[sid] {
				return fmt.Errorf("docked session %s missing from dock order", sid)
			}
			if w != nil {
				return fmt.Errorf("docked session %s still owns window %s", sid, w.ID)
			}
		case types.PresentationDetached:
			if inDock[sid] {
				return fmt.Errorf("detached session %s still in dock order", sid)
			}
			if w == nil {
				return fmt.Errorf("detached session %s has no window", sid)
			}
			if w.Minimized {
				return fmt.Errorf("detached session %s has minimized window", sid)
			}
		case types.PresentationMinimized:
			if inDock[sid] {
				return fmt.Errorf("minimized session %s still in dock order", sid)
			}
			if w == nil {
				return fmt.Errorf("minimized session %s has no window", sid)
			}
			if !w.Minimized || w.SavedRect == nil {
				return fmt.Errorf("minimized session %s has inconsistent window state", sid)
			}
		default:
			return fmt.Errorf("session %s has unknown presentation %q", sid, p)
		}
	}

	for sid := range c.windows {
		if _, ok := c.surfaces[sid]; !ok {
			return fmt.Errorf("window for unhosted session %s", sid)
		}
	}
	return nil
}

func (c *Controller) detachedLocked(sid string) (Surface, *Window, error) {
	s, ok := c.surfaces[sid]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	w := c.windows[sid]
	if s.Presentation() != types.PresentationDetached || w == nil {
		return nil, nil, fmt.Errorf("%w: requires detached, session %s is %s",
			ErrBadTransition, sid, s.Presentation())
	}
	return s, w, nil
}

func (c *Controller) removeDockedLocked(sid string) {
	idx := -1
	for i, d := range c.docked {
		if d == sid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	c.docked = append(c.docked[:idx], c.docked[idx+1:]...)

	if c.active != sid {
		return
	}
	switch {
	case len(c.docked) == 0:
		c.active = ""
	case idx < len(c.docked):
		c.active = c.docked[idx]
	default:
		c.active = c.docked[len(c.docked)-1]
	}
}

func (c *Controller) bringToFrontLocked(w *Window) {
	if w.Pinned {
		return
	}
	c.zTop++
	w.Z = c.zTop
}

func (c *Controller) cascadeRectLocked() types.Rect {
	r := c.cfg.DefaultRect
	step := c.cfg.CascadeStep * (c.detachN % 10)
	r.Left += step
	r.Top += step
	return c.clampRect(r)
}

func (c *Controller) clampRect(r types.Rect) types.Rect {
	if r.Width < c.cfg.MinWidth {
		r.Width = c.cfg.MinWidth
	}
	if r.Height < c.cfg.MinHeight {
		r.Height = c.cfg.MinHeight
	}
	return r
}

// animate runs one animation step under the configured hard timeout. The
// transition commits regardless of the outcome.
func (c *Controller) animate(ctx context.Context, name string, fn func(context.Context) error) {
	timeout := c.cfg.AnimationTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().AnimationTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(actx); err != nil {
		c.logger.Warn("animation did not complete, committing state anyway",
			zap.String("animation", name),
			zap.Error(err))
	}
}

func (c *Controller) recordTransition(from, to types.Presentation) {
	if c.metrics != nil {
		c.metrics.RecordTransition(string(from), string(to))
	}
}
