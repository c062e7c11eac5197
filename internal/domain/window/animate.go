package window

import (
	"context"
	"time"

	"github.com/danilokhury/termdock/internal/shared/types"
)

// Animator plays the minimize and restore motion. The controller bounds each
// call with a hard timeout and proceeds to the terminal state either way, so
// a wedged animation can never strand a window mid-transition.
type Animator interface {
	Minimize(ctx context.Context, from types.Rect) error
	Restore(ctx context.Context, to types.Rect) error
}

// Instant completes every animation immediately. The default.
type Instant struct{}

func (Instant) Minimize(context.Context, types.Rect) error { return nil }
func (Instant) Restore(context.Context, types.Rect) error  { return nil }

// Timed waits out a fixed duration, honoring context cancellation. Used by
// tests to exercise the animation timeout path.
type Timed struct {
	Duration time.Duration
}

func (t Timed) Minimize(ctx context.Context, _ types.Rect) error { return t.wait(ctx) }
func (t Timed) Restore(ctx context.Context, _ types.Rect) error  { return t.wait(ctx) }

func (t Timed) wait(ctx context.Context) error {
	timer := time.NewTimer(t.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
