// Package engine implements the matching engine of the mock server: a
// background task that reads the accepted connection, compares what arrives
// against the declared expectation windows and writes the queued responses.
//
// Windows and responses are committed by the test goroutine at any time,
// received bytes arrive from a reader goroutine. All comparison happens
// under the engine's lock, so a commit that happens before a comparison is
// always observed by it. Only the engine loop writes to the connection.
//
// Comparison is eager: every received byte is checked against the expected
// byte at the same offset as soon as both are known. Bytes that arrive
// before the matching expectation is declared stay buffered and are
// compared when it is.
package engine

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"tcpmock/mockingjay/pkg/log"
	"tcpmock/mockingjay/pkg/sink"
	"tcpmock/mockingjay/pkg/transport"
)

// ReadBufferSize is the size of a single read from the connection.
var ReadBufferSize = 4096

// State is the state of the matching engine for the current window.
type State int

// Engine states.
const (
	Idle State = iota
	Accumulating
	Matched
	Mismatched
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Matched:
		return "matched"
	case Mismatched:
		return "mismatched"
	default:
		return "unknown"
	}
}

// Engine matches one connection against declared exchanges.
type Engine struct {
	logger       *log.Logger
	writeTimeout time.Duration

	mu sync.Mutex
	// windows[len(windows)-1] is the open window, it grows on every
	// expectation commit. The ones before it were sealed by a response.
	windows   [][]byte
	responses [][]byte
	// received holds the bytes not yet consumed by a completed window,
	// the first compared of them equal the expectation.
	received    []byte
	compared    int
	completed   int
	dispatching bool
	// burned is set once a window mismatched or its response could not be
	// written. Windows from burnedAt on are never dispatched.
	burned      bool
	burnedAt    int
	drained     int
	faults      []Fault
	conn        transport.State
	inputClosed bool
	stopping    bool
	changed     chan struct{}

	nc     net.Conn
	wake   chan struct{}
	chunks chan []byte
	done   chan struct{}

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an engine waiting for a connection. Response writes block at
// most writeTimeout.
func New(writeTimeout time.Duration, logger *log.Logger) *Engine {
	return &Engine{
		logger:       logger,
		writeTimeout: writeTimeout,
		windows:      [][]byte{nil},
		conn:         transport.Listening,
		changed:      make(chan struct{}),
		wake:         make(chan struct{}, 1),
		chunks:       make(chan []byte, 16),
		done:         make(chan struct{}),
	}
}

// Expectations returns the committer expectation sinks flush into.
func (e *Engine) Expectations() sink.Committer {
	return sink.CommitFunc(e.CommitExpectation)
}

// Responses returns the committer response sinks flush into.
func (e *Engine) Responses() sink.Committer {
	return sink.CommitFunc(e.CommitResponse)
}

// CommitExpectation extends the open window by p.
func (e *Engine) CommitExpectation(p []byte) {
	e.mu.Lock()
	last := len(e.windows) - 1
	e.windows[last] = append(e.windows[last], p...)
	e.logger.VerboseMsg("Expectation window %d grew to %d bytes", e.completed+last, len(e.windows[last]))
	e.compareLocked()
	e.notifyLocked()
	e.mu.Unlock()

	e.signal()
}

// CommitResponse queues p as the next response block. A non-empty open
// window is sealed, so the next expectation starts a new window. An empty
// p is a valid block: the window completes without anything being sent.
func (e *Engine) CommitResponse(p []byte) {
	e.mu.Lock()
	e.responses = append(e.responses, bytes.Clone(p))
	if last := len(e.windows) - 1; len(e.windows[last]) > 0 {
		e.windows = append(e.windows, nil)
	}
	e.logger.VerboseMsg("Response %d queued (%d bytes)", e.completed+len(e.responses)-1, len(p))
	e.notifyLocked()
	e.mu.Unlock()

	e.signal()
}

// RecordFault adds f to the recorded faults.
func (e *Engine) RecordFault(f Fault) {
	e.mu.Lock()
	e.faults = append(e.faults, f)
	e.notifyLocked()
	e.mu.Unlock()
}

// Attach hands the accepted connection to the engine and starts the reader
// and the engine loop. It returns immediately.
func (e *Engine) Attach(conn net.Conn) {
	e.mu.Lock()
	if e.stopping || e.nc != nil {
		e.mu.Unlock()
		conn.Close()
		return
	}
	e.nc = conn
	e.conn = transport.Connected
	e.wg.Add(2)
	e.notifyLocked()
	e.mu.Unlock()

	go e.read(conn)
	go e.run(conn)
	e.signal()
}

// Stop closes the connection and waits for the background goroutines.
// It is safe to call more than once and before Attach.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopping = true
		nc := e.nc
		e.mu.Unlock()

		close(e.done)
		if nc != nil {
			nc.Close()
		}
		e.wg.Wait()

		e.mu.Lock()
		if e.conn == transport.Connected {
			e.conn = transport.Closed
		}
		e.notifyLocked()
		e.mu.Unlock()
	})
}

// State returns the state of the current window.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.burned && e.completed >= e.burnedAt:
		return Mismatched
	case e.dispatching:
		return Matched
	case len(e.received) == 0:
		return Idle
	default:
		return Accumulating
	}
}

// Changed returns a channel that is closed on the next state change.
func (e *Engine) Changed() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changed
}

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Conn:        e.conn,
		Received:    bytes.Clone(e.received),
		Compared:    e.compared,
		Completed:   e.completed,
		Dispatching: e.dispatching,
		Burned:      e.burned,
		BurnedAt:    e.burnedAt,
		InputClosed: e.inputClosed,
		Drained:     e.drained,
		Faults:      append([]Fault(nil), e.faults...),
	}
	for _, w := range e.windows {
		s.Windows = append(s.Windows, bytes.Clone(w))
	}
	for _, r := range e.responses {
		s.Responses = append(s.Responses, bytes.Clone(r))
	}
	return s
}

func (e *Engine) read(conn net.Conn) {
	defer e.wg.Done()
	defer close(e.chunks)

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			select {
			case e.chunks <- bytes.Clone(buf[:n]):
			case <-e.done:
				return
			}
		}
		if err != nil {
			e.mu.Lock()
			stopping := e.stopping
			e.mu.Unlock()

			switch {
			case stopping:
			case errors.Is(err, io.EOF):
				e.mu.Lock()
				e.inputClosed = true
				e.notifyLocked()
				e.mu.Unlock()
			default:
				e.RecordFault(Fault{Kind: ReadFailed, Detail: err.Error()})
			}
			return
		}
	}
}

func (e *Engine) run(conn net.Conn) {
	defer e.wg.Done()

	chunks := e.chunks
	for {
		select {
		case chunk, ok := <-chunks:
			if ok {
				e.receive(chunk)
			} else if e.halfClosed() {
				// the client is done sending but may still wait for responses
				chunks = nil
			} else {
				e.closed(conn)
				return
			}
		case <-e.wake:
		case <-e.done:
			return
		}
		e.dispatch(conn)
	}
}

func (e *Engine) halfClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputClosed {
		e.logger.VerboseMsg("Client %s closed its side of the connection", e.nc.RemoteAddr())
	}
	return e.inputClosed
}

func (e *Engine) closed(conn net.Conn) {
	conn.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.conn = transport.Closed
	e.logger.VerboseMsg("Connection from %s closed", conn.RemoteAddr())
	e.notifyLocked()
}

func (e *Engine) receive(chunk []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer e.notifyLocked()

	if e.burned {
		e.drained += len(chunk)
		return
	}
	e.received = append(e.received, chunk...)
	e.logger.VerboseMsg("Received %d bytes, %d buffered", len(chunk), len(e.received))
	e.compareLocked()
}

// compareLocked checks the received bytes not compared yet against the
// concatenated windows. It stops at the end of what is declared.
func (e *Engine) compareLocked() {
	if e.burned {
		return
	}

	start := 0
	for i, w := range e.windows {
		end := start + len(w)
		for e.compared < len(e.received) && e.compared < end {
			off := e.compared - start
			if e.received[e.compared] != w[off] {
				e.mismatchLocked(i, off, w, e.received[start:e.compared+1])
				return
			}
			e.compared++
		}
		if e.compared < end {
			return
		}
		start = end
	}
}

func (e *Engine) mismatchLocked(window, off int, expected, actual []byte) {
	f := Fault{
		Kind:     Mismatch,
		Window:   e.completed + window,
		Offset:   off,
		Expected: bytes.Clone(expected),
		Actual:   bytes.Clone(actual),
	}
	e.faults = append(e.faults, f)
	e.burned = true
	e.burnedAt = f.Window
	e.drained = len(e.received) - e.compared - 1
	e.logger.ErrorMsg("%s", f)
}

// dispatch completes every window that is fully received and has a
// response, writing the responses in order. Windows before a burned one
// are still completed.
func (e *Engine) dispatch(conn net.Conn) {
	for {
		e.mu.Lock()
		head := e.windows[0]
		if (e.burned && e.completed >= e.burnedAt) || e.stopping || len(head) == 0 || len(e.responses) == 0 || e.compared < len(head) {
			e.mu.Unlock()
			return
		}

		resp := e.responses[0]
		e.responses = e.responses[1:]
		if len(e.windows) == 1 {
			e.windows[0] = nil
		} else {
			e.windows = e.windows[1:]
		}
		e.received = e.received[len(head):]
		e.compared -= len(head)
		index := e.completed
		e.completed++
		e.dispatching = true
		e.notifyLocked()
		e.mu.Unlock()

		err := e.write(conn, resp)

		e.mu.Lock()
		e.dispatching = false
		if err != nil {
			if !e.stopping {
				e.faults = append(e.faults, Fault{Kind: WriteFailed, Window: index, Expected: resp, Detail: err.Error()})
				e.burned = true
				e.burnedAt = index
			}
		} else {
			e.logger.VerboseMsg("Window %d matched, sent %d response bytes", index, len(resp))
		}
		e.notifyLocked()
		e.mu.Unlock()

		if err != nil {
			return
		}
	}
}

func (e *Engine) write(conn net.Conn, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if e.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(e.writeTimeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write(p)
	return err
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// notifyLocked wakes everyone waiting on Changed.
func (e *Engine) notifyLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}
