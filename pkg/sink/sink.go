// Package sink provides the flush-delimited byte accumulators a test writes
// expectations and responses into.
//
// A Sink has a single producer. Written bytes collect in the current segment
// and become visible to the owner only on Flush, which hands the whole
// segment to the sink's Committer in one call.
package sink

import (
	"bytes"
	"errors"
	"sync"
)

// ErrClosed is returned by writes to a closed sink.
var ErrClosed = errors.New("sink closed")

// Committer receives flushed segments. Commit must not retain p.
type Committer interface {
	Commit(p []byte)
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(p []byte)

// Commit calls f(p).
func (f CommitFunc) Commit(p []byte) { f(p) }

// Sink is an append-only byte accumulator.
type Sink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	owner  Committer
	closed bool
}

// New creates a sink committing into c.
func New(c Committer) *Sink {
	return &Sink{owner: c}
}

// Write appends p to the current segment. It never blocks on I/O.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	return s.buf.Write(p)
}

// WriteString appends str to the current segment.
func (s *Sink) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Flush commits the current segment to the owner. Flushing an empty
// segment is a no-op.
func (s *Sink) Flush() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.buf.Len() == 0 {
		s.mu.Unlock()
		return nil
	}
	segment := bytes.Clone(s.buf.Bytes())
	s.buf.Reset()
	s.mu.Unlock()

	// commit outside the lock, the owner may notify a waiting reader
	s.owner.Commit(segment)
	return nil
}

// Buffered returns the number of bytes written but not yet flushed.
func (s *Sink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Reset drops unflushed bytes and reopens a closed sink.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	s.closed = false
}

// Close rejects further writes and flushes. Unflushed bytes are kept so
// they can still be reported.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
