// Package id provides client-side ID generation.
//
// Server session ids are opaque strings issued by the gateway and never
// minted here. Everything the client creates itself (floating windows,
// saved snapshots) gets a prefixed ULID: lexicographically sortable,
// unique, and readable in logs.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// WindowID identifies a floating window.
type WindowID string

// SnapshotID identifies a saved layout snapshot.
type SnapshotID string

const (
	windowPrefix   = "win"
	snapshotPrefix = "snap"
	requestPrefix  = "req"
)

// Generator mints ULIDs from a shared entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// WindowID generates a floating-window ID.
func (g *Generator) WindowID() WindowID {
	return WindowID(g.GenerateWithPrefix(windowPrefix))
}

// SnapshotID generates a snapshot ID.
func (g *Generator) SnapshotID() SnapshotID {
	return SnapshotID(g.GenerateWithPrefix(snapshotPrefix))
}

// RequestID generates a request correlation ID.
func (g *Generator) RequestID() string {
	return g.GenerateWithPrefix(requestPrefix)
}

func (id WindowID) String() string   { return string(id) }
func (id SnapshotID) String() string { return string(id) }
