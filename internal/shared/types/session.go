package types

// Profile identifies which CLI a session runs. It determines the default
// label and the dev server's spawn command only; the wire protocol is
// identical for every profile.
type Profile string

const (
	ProfileClaudeCode Profile = "claude-code"
	ProfileCodex      Profile = "codex"
	ProfileGemini     Profile = "gemini"
	ProfileShell      Profile = "shell"
)

// Profiles lists all known profiles in display order.
func Profiles() []Profile {
	return []Profile{ProfileClaudeCode, ProfileCodex, ProfileGemini, ProfileShell}
}

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	switch p {
	case ProfileClaudeCode, ProfileCodex, ProfileGemini, ProfileShell:
		return true
	}
	return false
}

// DefaultLabel returns the human-readable label used when the user has not
// renamed the session.
func (p Profile) DefaultLabel() string {
	switch p {
	case ProfileClaudeCode:
		return "Claude Code"
	case ProfileCodex:
		return "Codex"
	case ProfileGemini:
		return "Gemini"
	case ProfileShell:
		return "Shell"
	}
	return string(p)
}

// Presentation is the mutually exclusive display state of a session's
// viewport.
type Presentation string

const (
	PresentationDocked    Presentation = "docked"
	PresentationDetached  Presentation = "detached"
	PresentationMinimized Presentation = "minimized"
)

// Rect is floating-window geometry in pixels.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegistryEntry is the persisted projection of a session. Entries survive
// reloads and are reconciled against server truth on boot.
type RegistryEntry struct {
	ID      string  `json:"id"`
	Profile Profile `json:"profile"`
	Label   string  `json:"label"`
	Pinned  bool    `json:"pinned"`
}

// LiveSession is one entry of the listing collaborator's response. Only ID
// matters for liveness checks; the rest is informational.
type LiveSession struct {
	ID        string  `json:"id"`
	Profile   Profile `json:"profile,omitempty"`
	CreatedAt int64   `json:"created_at,omitempty"`
}
