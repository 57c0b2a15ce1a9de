package engine

import "tcpmock/mockingjay/pkg/transport"

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	Conn transport.State

	// Windows are the expectation windows not completed yet, the last one
	// is open. Responses are the blocks not sent yet.
	Windows   [][]byte
	Responses [][]byte

	// Received holds the bytes not consumed by a completed window, the
	// first Compared of them matched the expectation.
	Received []byte
	Compared int

	Completed   int
	Dispatching bool

	// Burned is set once a window mismatched or its response could not be
	// written. BurnedAt is the index of that window, counting completed ones.
	Burned   bool
	BurnedAt int

	// InputClosed is set once the client stopped sending (EOF); responses
	// can still be written.
	InputClosed bool

	Drained int
	Faults  []Fault
}

// Declared reports whether anything is still expected or queued.
func (s Snapshot) Declared() bool {
	return s.Completed > 0 || len(s.Responses) > 0 || s.expectedLen() > 0
}

// Pending reports whether any window, response or received byte has not
// been accounted for.
func (s Snapshot) Pending() bool {
	return s.Dispatching || len(s.Responses) > 0 || s.expectedLen() > 0 || len(s.Received) > 0
}

// Settled reports whether the conversation cannot make progress without
// more input from the test: either everything is done, or the only thing
// that could still change it is a declaration that will not come. A window
// waiting for client bytes on a live connection is not settled.
func (s Snapshot) Settled() bool {
	switch {
	case s.Dispatching || s.dispatchable():
		return false
	case len(s.Faults) > 0 || s.Burned:
		return true
	case s.Conn == transport.Closed:
		return true
	case s.Conn != transport.Connected:
		return !s.Declared()
	case s.InputClosed:
		return true
	}

	// a head not fully received is waiting for the client
	return s.Compared >= len(s.head())
}

// HeadBurned reports whether the oldest pending window is burned.
func (s Snapshot) HeadBurned() bool {
	return s.Burned && s.Completed >= s.BurnedAt
}

// dispatchable reports whether the head window is about to be completed.
func (s Snapshot) dispatchable() bool {
	head := s.head()
	return s.Conn == transport.Connected && !s.HeadBurned() &&
		len(head) > 0 && s.Compared >= len(head) && len(s.Responses) > 0
}

func (s Snapshot) head() []byte {
	if len(s.Windows) == 0 {
		return nil
	}
	return s.Windows[0]
}

func (s Snapshot) expectedLen() int {
	n := 0
	for _, w := range s.Windows {
		n += len(w)
	}
	return n
}
