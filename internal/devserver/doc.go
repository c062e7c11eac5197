// Package devserver is the local session gateway: an HTTP and WebSocket
// server that spawns profile commands on PTYs and speaks the same frame
// protocol the client binds to.
//
// Each session keeps a fixed-size replay ring of recent output. A client
// connecting to a session's socket first receives the ring as one replay
// frame, then live output; reading the ring never drains it, so any number
// of reconnects replay the same history.
package devserver
