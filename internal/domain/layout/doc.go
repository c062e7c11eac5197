// Package layout captures and restores the arrangement of all hosted
// sessions: dock order, floating geometry, pin flags, minimize state, and
// the panel itself.
//
// Restore is two-phase. Phase one disconnects every client-side session
// without deleting anything on the server, so the PTY processes keep
// running. Phase two filters the snapshot against the server's live list,
// re-adopts the survivors in snapshot order, and replays the layout per
// window as detach, then geometry, then minimize. Sessions whose PTY died
// since the snapshot are skipped without an error; a stale snapshot is an
// expected input, not a failure.
package layout
