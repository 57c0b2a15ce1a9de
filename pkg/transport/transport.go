// Package transport defines what the mock server's listener hands over to
// the matching engine.
//
// The only transport is a raw TCP byte stream (see package tcp). A listener
// accepts exactly one connection for its whole lifetime and passes it to a
// Handler; later connection attempts are closed immediately.
package transport

import "net"

// Handler takes ownership of an accepted connection.
// It must not block; long-running work belongs in its own goroutine.
type Handler func(net.Conn)

// State is the lifecycle state of the single mock connection.
type State int

// Connection states, in the only order they can occur.
const (
	NotStarted State = iota
	Listening
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Listening:
		return "listening"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
