package devserver

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/shared/types"
)

// ptySession is one spawned profile command on a PTY. Output fans out to
// every attached connection and into the replay ring.
type ptySession struct {
	id        string
	profile   types.Profile
	createdAt time.Time
	log       *logging.Logger

	cmd  *exec.Cmd
	ptmx *os.File
	ring *Ring

	mu     sync.Mutex
	subs   map[chan types.Frame]struct{}
	closed bool
	onExit func(id string)
}

func spawn(profile types.Profile, spec ProfileSpec, cols, rows int, cwd string, log *logging.Logger) (*ptySession, error) {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", profile, err)
	}

	s := &ptySession{
		id:        uuid.NewString(),
		profile:   profile,
		createdAt: time.Now(),
		cmd:       cmd,
		ptmx:      ptmx,
		ring:      NewRing(defaultRingSize),
		subs:      make(map[chan types.Frame]struct{}),
	}
	s.log = log.With(zap.String("session_id", s.id), zap.String("profile", string(profile)))

	go s.readPump()
	go s.monitor()
	return s, nil
}

// readPump moves PTY output into the ring and out to subscribers.
func (s *ptySession) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.ring.Write(data)
			s.broadcast(types.Frame{Type: types.FrameOutput, Data: string(data)})
		}
		if err != nil {
			return
		}
	}
}

// monitor reaps the process and announces the exit to every subscriber.
func (s *ptySession) monitor() {
	err := s.cmd.Wait()
	reason := "process exited"
	if err != nil {
		reason = fmt.Sprintf("process exited: %v", err)
	}

	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	onExit := s.onExit
	s.mu.Unlock()

	s.ptmx.Close()
	if !alreadyClosed {
		s.log.Info("session exited", zap.Error(err))
		s.broadcast(types.Frame{Type: types.FrameExit, Reason: reason})
	}
	if onExit != nil {
		onExit(s.id)
	}
}

func (s *ptySession) attach(ch chan types.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[ch] = struct{}{}
}

func (s *ptySession) detach(ch chan types.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, ch)
}

// broadcast fans a frame out without blocking the read pump; a subscriber
// that cannot keep up loses frames rather than stalling the PTY.
func (s *ptySession) broadcast(frame types.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (s *ptySession) write(data []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("session %s: closed", s.id)
	}
	_, err := s.ptmx.Write(data)
	return err
}

func (s *ptySession) resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("session %s: invalid size %dx%d", s.id, cols, rows)
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// kill terminates the process. The monitor goroutine handles cleanup.
func (s *ptySession) kill() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.ptmx.Close()
}
