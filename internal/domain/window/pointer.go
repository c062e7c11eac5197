package window

import (
	"fmt"

	"github.com/danilokhury/termdock/internal/shared/types"
)

// Edge names a resize handle. Corners combine two edges.
type Edge string

const (
	EdgeN  Edge = "n"
	EdgeNE Edge = "ne"
	EdgeE  Edge = "e"
	EdgeSE Edge = "se"
	EdgeS  Edge = "s"
	EdgeSW Edge = "sw"
	EdgeW  Edge = "w"
	EdgeNW Edge = "nw"
)

func (e Edge) north() bool { return e == EdgeN || e == EdgeNE || e == EdgeNW }
func (e Edge) south() bool { return e == EdgeS || e == EdgeSE || e == EdgeSW }
func (e Edge) east() bool  { return e == EdgeE || e == EdgeNE || e == EdgeSE }
func (e Edge) west() bool  { return e == EdgeW || e == EdgeNW || e == EdgeSW }

func (e Edge) valid() bool {
	switch e {
	case EdgeN, EdgeNE, EdgeE, EdgeSE, EdgeS, EdgeSW, EdgeW, EdgeNW:
		return true
	}
	return false
}

type pointerKind int

const (
	opDrag pointerKind = iota
	opResize
)

// pointerOp is the single shared drag-or-resize in flight. Deltas are
// computed from the pointer-down position against the rect captured at that
// moment, so intermediate moves never accumulate rounding error.
type pointerOp struct {
	kind      pointerKind
	sessionID string
	edge      Edge
	startX    int
	startY    int
	startRect types.Rect
}

// BeginDrag starts moving a floating window. Rejected while another pointer
// operation is running, while the window is minimized, and for pinned
// windows.
func (c *Controller) BeginDrag(sid string, x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(sid, &pointerOp{kind: opDrag, startX: x, startY: y})
}

// BeginResize starts resizing a floating window from one of the eight
// handles.
func (c *Controller) BeginResize(sid string, edge Edge, x, y int) error {
	if !edge.valid() {
		return fmt.Errorf("window: unknown resize edge %q", edge)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(sid, &pointerOp{kind: opResize, edge: edge, startX: x, startY: y})
}

func (c *Controller) beginLocked(sid string, op *pointerOp) error {
	if c.pointer != nil {
		return fmt.Errorf("%w: session %s", ErrPointerBusy, c.pointer.sessionID)
	}
	w, ok := c.windows[sid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	if w.Minimized {
		return fmt.Errorf("%w: session %s is minimized", ErrBadTransition, sid)
	}
	if w.Pinned {
		return fmt.Errorf("%w: %s", ErrPinned, sid)
	}

	op.sessionID = sid
	op.startRect = w.Rect
	c.pointer = op
	c.bringToFrontLocked(w)
	return nil
}

// PointerMove feeds a document-level pointer position into the active
// operation. A no-op when nothing is in flight, so the caller can wire it to
// the global move stream unconditionally.
func (c *Controller) PointerMove(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := c.pointer
	if op == nil {
		return
	}
	w, ok := c.windows[op.sessionID]
	if !ok {
		// Window closed mid-operation; drop the stale op.
		c.pointer = nil
		return
	}

	dx, dy := x-op.startX, y-op.startY
	switch op.kind {
	case opDrag:
		w.Rect.Left = c.snap(op.startRect.Left + dx)
		w.Rect.Top = c.snap(op.startRect.Top + dy)
	case opResize:
		w.Rect = c.resizeRect(op.startRect, op.edge, dx, dy)
		if s, ok := c.surfaces[op.sessionID]; ok {
			cols, rows := c.cfg.cells(w.Rect)
			s.Refit(cols, rows)
		}
	}
}

// PointerUp ends the active operation and frees the shared slot.
func (c *Controller) PointerUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointer = nil
}

// PointerBusy reports whether a drag or resize is in flight.
func (c *Controller) PointerBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pointer != nil
}

func (c *Controller) snap(v int) int {
	g := c.cfg.GridSnap
	if g <= 0 {
		return v
	}
	half := g / 2
	if v < 0 {
		return -((-v + half) / g * g)
	}
	return (v + half) / g * g
}

// resizeRect applies edge deltas with minimum clamps. When a west or north
// edge hits the minimum the opposite edge stays put, matching how a browser
// resize handle behaves.
func (c *Controller) resizeRect(start types.Rect, edge Edge, dx, dy int) types.Rect {
	r := start

	if edge.east() {
		r.Width = start.Width + dx
	}
	if edge.west() {
		r.Width = start.Width - dx
	}
	if edge.south() {
		r.Height = start.Height + dy
	}
	if edge.north() {
		r.Height = start.Height - dy
	}

	if r.Width < c.cfg.MinWidth {
		r.Width = c.cfg.MinWidth
	}
	if r.Height < c.cfg.MinHeight {
		r.Height = c.cfg.MinHeight
	}

	if edge.west() {
		r.Left = start.Left + start.Width - r.Width
	}
	if edge.north() {
		r.Top = start.Top + start.Height - r.Height
	}
	return r
}
