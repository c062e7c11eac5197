package window

import (
	"time"

	"github.com/danilokhury/termdock/internal/shared/id"
	"github.com/danilokhury/termdock/internal/shared/types"
)

// Surface is the controller's view of a hosted session. Implemented by the
// session type; SetPresentation must only ever be called from this package.
type Surface interface {
	ID() string
	Pinned() bool
	Presentation() types.Presentation
	SetPresentation(p types.Presentation)

	// Refit resizes the emulator and the remote PTY in lock-step.
	Refit(cols, rows int)

	Focus()
}

// Window is a Detached Window Descriptor: geometry and flags for one
// floating session. It exists only while the session is Detached or
// Minimized and is destroyed when the session re-docks or closes.
type Window struct {
	ID        id.WindowID
	SessionID string
	Rect      types.Rect
	Pinned    bool
	Minimized bool

	// SavedRect caches pre-minimize geometry so restore is exact.
	SavedRect *types.Rect

	// Z is the stacking position. Pinned windows ignore it and float above.
	Z int
}

func (w *Window) clone() Window {
	c := *w
	if w.SavedRect != nil {
		saved := *w.SavedRect
		c.SavedRect = &saved
	}
	return c
}

// Config tunes floating-window behavior.
type Config struct {
	MinWidth  int
	MinHeight int

	// GridSnap rounds drag positions to multiples of this many pixels.
	// Zero disables snapping.
	GridSnap int

	// CellWidth/CellHeight approximate one terminal cell in pixels, used to
	// translate window geometry into emulator cols/rows.
	CellWidth  int
	CellHeight int

	// DefaultRect is where the first detached window lands; subsequent ones
	// cascade by CascadeStep.
	DefaultRect types.Rect
	CascadeStep int

	AnimationTimeout time.Duration
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		MinWidth:         320,
		MinHeight:        200,
		CellWidth:        8,
		CellHeight:       17,
		DefaultRect:      types.Rect{Left: 120, Top: 90, Width: 640, Height: 420},
		CascadeStep:      32,
		AnimationTimeout: time.Second,
	}
}

func (cfg Config) cells(r types.Rect) (cols, rows int) {
	cols = r.Width / cfg.CellWidth
	rows = r.Height / cfg.CellHeight
	if cols < 2 {
		cols = 2
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}
