// Package window implements the presentation state machine for terminal
// sessions: Docked, Detached, Minimized.
//
// In the browser shell this machine moves a viewport DOM node between
// containers. Here ownership is explicit: each session's presentation value
// plus, for floating sessions, exactly one Window descriptor. Every
// transition asserts its precondition before mutating, and CheckOwnership
// verifies the whole invariant: a hosted session is either in the docked
// order or has a window, never both and never neither.
//
// Drag and resize share one document-level pointer operation. A second
// window cannot start a drag while one is in progress; its pointer-down is
// rejected until the first operation's pointer-up clears the slot. Pinned
// windows are exempt from drag, resize and focus re-ordering, and hold a
// fixed elevated z-order.
package window
