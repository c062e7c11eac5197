package types

import "github.com/danilokhury/termdock/internal/shared/id"

// SessionSnapshot is one session's entry in a layout snapshot.
type SessionSnapshot struct {
	ID       string  `json:"id"`
	Profile  Profile `json:"profile"`
	Label    string  `json:"label"`
	Pinned   bool    `json:"pinned"`
	Detached bool    `json:"detached"`
}

// WindowSnapshot captures one floating window's geometry and flags. For a
// minimized window Rect holds the pre-minimize geometry, so restoring the
// snapshot reproduces the exact rect the user will get back.
type WindowSnapshot struct {
	SessionID string `json:"session_id"`
	Rect      Rect   `json:"rect"`
	Pinned    bool   `json:"pinned"`
	Label     string `json:"label"`
	Minimized bool   `json:"minimized"`
}

// LayoutSnapshot is a point-in-time serialization of the whole manager's
// presentation state. It references PTYs by id and never recreates them:
// restoring only re-attaches to sessions the server still reports as live.
type LayoutSnapshot struct {
	ID           id.SnapshotID     `json:"id"`
	DockedHeight int               `json:"docked_height"`
	Visible      bool              `json:"visible"`
	Sessions     []SessionSnapshot `json:"sessions"`
	DetachedTabs []WindowSnapshot  `json:"detached_tabs"`
}
