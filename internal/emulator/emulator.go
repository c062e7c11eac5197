// Package emulator declares the terminal-emulator boundary.
//
// The rendering engine itself is an external collaborator; the session
// manager only needs write/onData/resize/dispose/focus/selection
// primitives. One emulator instance lives for the whole lifetime of its
// session: reparenting a viewport never recreates it, which is what
// preserves scrollback across docking, detaching and minimizing.
package emulator

// Emulator is one terminal rendering instance.
type Emulator interface {
	// Write renders raw terminal bytes (live output or replayed history).
	Write(data []byte)

	// OnData registers the keystroke handler. Data typed into the emulator
	// is forwarded to the transport as input frames.
	OnData(fn func(data []byte))

	// Resize refits the grid to the given dimensions.
	Resize(cols, rows int)

	// Size returns the current grid dimensions.
	Size() (cols, rows int)

	// Focus gives the emulator keyboard focus.
	Focus()

	// Selection returns the currently selected text, if any.
	Selection() string

	// Dispose releases the instance. Further calls are no-ops.
	Dispose()
}

// Factory creates one emulator per session.
type Factory func() Emulator
