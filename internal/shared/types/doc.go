// Package types defines the shared data model for the terminal session
// manager: profiles, presentation states, wire frames, registry entries,
// and layout snapshots.
//
// Everything here is a plain serializable value. Behavior lives in the
// domain packages; collaborator boundaries (emulator, gateway, clipboard)
// are declared where they are consumed.
package types
