// Package transport binds one session to its WebSocket: typed JSON frames
// in both directions between the terminal emulator and the server-side PTY.
//
// A Binding owns exactly one connection for its lifetime. Reconnecting after
// a reload means a new Binding on the same server session id; the first
// frames received are then replay, not output, and the rendering path does
// not distinguish the two.
package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/emulator"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
	"github.com/danilokhury/termdock/internal/shared/types"
)

// ErrClosed is returned by outbound sends after the binding went inert
// (explicit close, exit frame, or transport failure).
var ErrClosed = errors.New("transport: binding closed")

// Events are the callbacks a binding raises toward the session manager.
// All of them may be nil.
type Events struct {
	// OnExit fires once, when the session is provably over: an exit frame,
	// a "session not found" error, or an unexpected connection close.
	OnExit func(reason string)

	// OnImageSaved fires when the server reports a pasted image was written
	// to disk. The path is never injected into the PTY.
	OnImageSaved func(path string)

	// OnMemorySaved fires after the saved-memory path was injected into the
	// PTY as input.
	OnMemorySaved func(path string)
}

// Options configures a Binding.
type Options struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Dialer  *websocket.Dialer
}

// Binding is one session's WebSocket transport.
type Binding struct {
	sessionID string
	conn      *websocket.Conn
	emu       emulator.Emulator
	events    Events
	log       *logging.Logger
	metrics   *monitoring.Metrics

	writeMu  sync.Mutex
	closed   atomic.Bool
	exitOnce sync.Once
	done     chan struct{}
}

// Open dials the per-session endpoint and starts the read loop. On open it
// immediately sends a resize frame with the emulator's current size, so the
// remote PTY wraps output at the right width from the first byte.
func Open(ctx context.Context, socketURL, sessionID string, emu emulator.Emulator, events Events, opts Options) (*Binding, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", socketURL, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", socketURL, err)
	}

	b := &Binding{
		sessionID: sessionID,
		conn:      conn,
		emu:       emu,
		events:    events,
		log:       log.With(zap.String("session_id", sessionID)),
		metrics:   opts.Metrics,
		done:      make(chan struct{}),
	}

	cols, rows := emu.Size()
	if err := b.SendResize(cols, rows); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initial resize: %w", err)
	}

	// Keystrokes typed into the emulator go straight out as input frames.
	emu.OnData(func(data []byte) {
		if err := b.SendInput(string(data)); err != nil && !errors.Is(err, ErrClosed) {
			b.log.Debug("input send failed", zap.Error(err))
		}
	})

	if b.metrics != nil {
		b.metrics.WSConnections.Inc()
	}

	go b.readLoop()

	return b, nil
}

// SessionID returns the server session id this binding serves.
func (b *Binding) SessionID() string { return b.sessionID }

// Done is closed when the read loop ends.
func (b *Binding) Done() <-chan struct{} { return b.done }

func (b *Binding) readLoop() {
	defer close(b.done)
	for {
		var frame types.Frame
		if err := b.conn.ReadJSON(&frame); err != nil {
			// An unexpected close is indistinguishable from process death
			// for the user; treat it like an exit frame.
			if !b.closed.Load() {
				b.exit("transport closed")
			}
			return
		}
		b.record("in", string(frame.Type))
		b.dispatch(frame)
	}
}

func (b *Binding) dispatch(frame types.Frame) {
	switch frame.Type {
	case types.FrameOutput, types.FrameReplay:
		// Replay is buffered history after a reconnect; rendering is
		// identical to live output.
		b.emu.Write([]byte(frame.Data))

	case types.FrameExit:
		reason := frame.Reason
		if reason == "" {
			reason = "exit"
		}
		b.exit(reason)

	case types.FrameError:
		if isSessionNotFound(frame.Message) {
			// The PTY is provably gone; no retry.
			b.exit("session not found")
			return
		}
		b.emu.Write([]byte("\r\n\x1b[31m" + frame.Message + "\x1b[0m\r\n"))

	case types.FrameImageSaved:
		// Deliberately no PTY write: injecting binary-derived text into a
		// TUI app corrupts its rendering.
		if b.events.OnImageSaved != nil {
			b.events.OnImageSaved(frame.Path)
		}

	case types.FrameMemorySaved:
		// A plain file reference is the one server-derived string that is
		// safe to inject as input.
		if err := b.SendInput(frame.Path); err != nil && !errors.Is(err, ErrClosed) {
			b.log.Debug("memory path inject failed", zap.Error(err))
		}
		if b.events.OnMemorySaved != nil {
			b.events.OnMemorySaved(frame.Path)
		}

	default:
		b.log.Debug("unknown frame type", zap.String("type", string(frame.Type)))
	}
}

// exit makes the binding inert and reports session death exactly once.
func (b *Binding) exit(reason string) {
	b.exitOnce.Do(func() {
		b.closed.Store(true)
		b.conn.Close()
		if b.metrics != nil {
			b.metrics.WSConnections.Dec()
		}
		b.log.Info("session ended", zap.String("reason", reason))
		if b.events.OnExit != nil {
			b.events.OnExit(reason)
		}
	})
}

// SendInput forwards terminal input to the PTY.
func (b *Binding) SendInput(data string) error {
	return b.send(types.Frame{Type: types.FrameInput, Data: data})
}

// SendResize reports new grid dimensions to the PTY. Callers must refit the
// local emulator in the same turn; the two sides must stay in lock-step or
// the remote process wraps output at the wrong width.
func (b *Binding) SendResize(cols, rows int) error {
	return b.send(types.Frame{Type: types.FrameResize, Cols: cols, Rows: rows})
}

// SendImagePaste uploads pasted image bytes. The MIME type is sniffed from
// the payload.
func (b *Binding) SendImagePaste(data []byte) error {
	mime := mimetype.Detect(data)
	return b.send(types.Frame{
		Type:     types.FrameImagePaste,
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: mime.String(),
	})
}

// SendMemoryDrop uploads a dropped memory document.
func (b *Binding) SendMemoryDrop(content, title string) error {
	return b.send(types.Frame{Type: types.FrameMemoryDrop, Content: content, Title: title})
}

func (b *Binding) send(frame types.Frame) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write %s frame: %w", frame.Type, err)
	}
	b.record("out", string(frame.Type))
	return nil
}

// Close tears the transport down without exit semantics: no OnExit, the
// server PTY stays alive. Used by disconnect-all and by teardown of
// already-dead sessions. Idempotent.
func (b *Binding) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.metrics != nil {
		b.metrics.WSConnections.Dec()
	}
	// Suppress OnExit for the read loop's inevitable error.
	b.exitOnce.Do(func() {})
	return b.conn.Close()
}

func isSessionNotFound(message string) bool {
	return strings.Contains(strings.ToLower(message), "session not found")
}

func (b *Binding) record(direction, frameType string) {
	if b.metrics != nil {
		b.metrics.RecordFrame(direction, frameType)
	}
}
