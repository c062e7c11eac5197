package devserver

import "sync"

// defaultRingSize is how much scrollback a reconnecting client gets back.
const defaultRingSize = 256 * 1024

// Ring is a fixed-capacity byte ring holding the most recent PTY output.
// Reads are non-destructive; every subscriber replays the same bytes.
type Ring struct {
	mu    sync.Mutex
	buf   []byte
	start int
	size  int
}

// NewRing creates a ring with the given capacity in bytes.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Write appends bytes, evicting the oldest when full.
func (r *Ring) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.buf)
	if len(p) >= capacity {
		copy(r.buf, p[len(p)-capacity:])
		r.start = 0
		r.size = capacity
		return
	}

	end := (r.start + r.size) % capacity
	n := copy(r.buf[end:], p)
	if n < len(p) {
		copy(r.buf, p[n:])
	}

	r.size += len(p)
	if r.size > capacity {
		r.start = (r.start + r.size - capacity) % capacity
		r.size = capacity
	}
}

// Bytes returns the buffered output oldest-first without consuming it.
func (r *Ring) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, r.size)
	n := copy(out, r.buf[r.start:])
	if n < r.size {
		copy(out[n:], r.buf)
	}
	return out
}

// Len returns how many bytes are buffered.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
