package engine

import (
	"fmt"
	"strconv"
)

// Kind classifies a Fault.
type Kind int

// Fault kinds.
const (
	Mismatch Kind = iota + 1
	UnmatchedRemainder
	UnsentResponse
	UnexpectedBytes
	UnflushedBytes
	NoConnection
	WriteFailed
	ReadFailed
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Mismatch:
		return "mismatch"
	case UnmatchedRemainder:
		return "unmatched remainder"
	case UnsentResponse:
		return "unsent response"
	case UnexpectedBytes:
		return "unexpected bytes"
	case UnflushedBytes:
		return "unflushed bytes"
	case NoConnection:
		return "no connection"
	case WriteFailed:
		return "write failed"
	case ReadFailed:
		return "read failed"
	case Timeout:
		return "timeout"
	default:
		return "fault(" + strconv.Itoa(int(k)) + ")"
	}
}

// Fault is a recorded divergence or an unmet condition.
//
// For a Mismatch, Expected holds the whole window and Actual the bytes
// received for it up to and including the diverging one, Offset is the
// position of the divergence within the window.
type Fault struct {
	Kind     Kind
	Window   int
	Offset   int
	Expected []byte
	Actual   []byte
	Detail   string
}

func (f Fault) String() string {
	switch f.Kind {
	case Mismatch:
		return fmt.Sprintf("%s in window %d at offset %d: expected %s, actual %s (window %q, received %q)",
			f.Kind, f.Window, f.Offset, quoteByte(f.Expected, f.Offset), quoteByte(f.Actual, f.Offset), f.Expected, f.Actual)
	case UnmatchedRemainder:
		return fmt.Sprintf("%s in window %d: received %d of %d bytes, still expecting %q",
			f.Kind, f.Window, len(f.Actual), len(f.Expected), f.Expected[min(len(f.Actual), len(f.Expected)):])
	case UnexpectedBytes:
		return fmt.Sprintf("%s: received %d bytes beyond every expectation: %q", f.Kind, len(f.Actual), f.Actual)
	}

	if f.Detail == "" {
		return f.Kind.String()
	}
	return f.Kind.String() + ": " + f.Detail
}

func quoteByte(p []byte, i int) string {
	if i < 0 || i >= len(p) {
		return "<nothing>"
	}
	return fmt.Sprintf("%q (0x%02x)", p[i], p[i])
}
