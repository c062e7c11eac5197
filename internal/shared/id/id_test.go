package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixes(t *testing.T) {
	g := NewGenerator()

	assert.True(t, strings.HasPrefix(g.WindowID().String(), "win_"))
	assert.True(t, strings.HasPrefix(g.SnapshotID().String(), "snap_"))
	assert.True(t, strings.HasPrefix(g.RequestID(), "req_"))
}

func TestUniqueness(t *testing.T) {
	g := NewGenerator()
	seen := make(map[WindowID]bool)
	for i := 0; i < 1000; i++ {
		id := g.WindowID()
		assert.False(t, seen[id], "duplicate window id %s", id)
		seen[id] = true
	}
}

func TestSortable(t *testing.T) {
	a := Default().Generate()
	b := Default().Generate()
	assert.True(t, a.String() <= b.String())
}
