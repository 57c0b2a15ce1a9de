package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
)

type recorder struct {
	segments [][]byte
}

func (r *recorder) Commit(p []byte) {
	r.segments = append(r.segments, p)
}

var _ io.Writer = (*Sink)(nil)

func TestSink_FlushCommitsSegments(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New(rec)

	s.WriteString("It was the best of times.  ")
	if len(rec.segments) != 0 {
		t.Fatalf("Write() committed before Flush(): %q", rec.segments)
	}
	if s.Buffered() != 27 {
		t.Errorf("Buffered() = %d; want 27", s.Buffered())
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	s.Write([]byte("It was "))
	s.Write([]byte("the worst of times."))
	s.Flush()

	want := []string{"It was the best of times.  ", "It was the worst of times."}
	if len(rec.segments) != len(want) {
		t.Fatalf("committed %d segments; want %d", len(rec.segments), len(want))
	}
	for i, w := range want {
		if string(rec.segments[i]) != w {
			t.Errorf("segment %d = %q; want %q", i, rec.segments[i], w)
		}
	}
	if s.Buffered() != 0 {
		t.Errorf("Buffered() after flush = %d; want 0", s.Buffered())
	}
}

func TestSink_EmptyFlush(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New(rec)

	s.Flush()
	s.Write(nil)
	s.Flush()

	if len(rec.segments) != 0 {
		t.Errorf("empty flushes committed %d segments; want 0", len(rec.segments))
	}
}

func TestSink_SegmentNotAliased(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New(rec)

	s.WriteString("AB")
	s.Flush()
	s.WriteString("CD")
	s.Flush()

	if !bytes.Equal(rec.segments[0], []byte("AB")) {
		t.Errorf("first segment changed to %q after second write", rec.segments[0])
	}
}

func TestSink_Close(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New(rec)

	s.WriteString("pending")
	s.Close()

	if _, err := s.WriteString("more"); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close() error = %v; want ErrClosed", err)
	}
	if err := s.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush() after Close() error = %v; want ErrClosed", err)
	}
	if s.Buffered() != 7 {
		t.Errorf("Buffered() after Close() = %d; want 7", s.Buffered())
	}
	if len(rec.segments) != 0 {
		t.Errorf("closed sink committed %q", rec.segments)
	}

	s.Reset()
	if s.Buffered() != 0 {
		t.Errorf("Buffered() after Reset() = %d; want 0", s.Buffered())
	}
	if _, err := s.WriteString("again"); err != nil {
		t.Errorf("Write() after Reset() error = %v", err)
	}
}

func TestSink_CommitFunc(t *testing.T) {
	t.Parallel()

	var got []byte
	s := New(CommitFunc(func(p []byte) { got = append(got, p...) }))

	fmt.Fprintf(s, "%s-%d", "block", 7)
	s.Flush()

	if string(got) != "block-7" {
		t.Errorf("committed %q; want %q", got, "block-7")
	}
}
