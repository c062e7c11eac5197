// Package session owns terminal session lifecycle: creation through the
// gateway, transport attach and reconnect, the persisted registry, and
// teardown.
//
// The registry is the durable list of sessions the client believes exist.
// The server's live list is the source of truth for what actually exists.
// Boot reconciles the two by intersecting: persisted entries still alive are
// reconnected in their persisted order, everything else is pruned. The
// registry is never trusted over the server, and a failed liveness check
// never prunes anything.
package session
