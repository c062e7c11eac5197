package emulator

import (
	"strings"
	"sync"
)

// Recorder is an in-memory Emulator. It keeps everything written to it,
// which makes it the emulator used by tests and by headless tooling.
type Recorder struct {
	mu       sync.Mutex
	contents strings.Builder
	cols     int
	rows     int
	onData   func([]byte)
	focused  bool
	disposed bool
	resizes  int
}

// NewRecorder creates a recorder with the given initial grid size.
func NewRecorder(cols, rows int) *Recorder {
	return &Recorder{cols: cols, rows: rows}
}

func (r *Recorder) Write(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.contents.Write(data)
}

func (r *Recorder) OnData(fn func(data []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onData = fn
}

func (r *Recorder) Resize(cols, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.cols, r.rows = cols, rows
	r.resizes++
}

func (r *Recorder) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cols, r.rows
}

func (r *Recorder) Focus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focused = true
}

func (r *Recorder) Selection() string { return "" }

func (r *Recorder) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposed = true
}

// Type simulates the user typing into the emulator.
func (r *Recorder) Type(s string) {
	r.mu.Lock()
	fn := r.onData
	r.mu.Unlock()
	if fn != nil {
		fn([]byte(s))
	}
}

// Contents returns everything written so far.
func (r *Recorder) Contents() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contents.String()
}

// Disposed reports whether Dispose was called.
func (r *Recorder) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// ResizeCount returns how many times Resize was called.
func (r *Recorder) ResizeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resizes
}
