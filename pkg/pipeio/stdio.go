// Package pipeio reads input streams that must not block shutdown.
package pipeio

import (
	"context"
	"io"
	"os"

	"github.com/muesli/cancelreader"
)

// Stdin reads from a file such as os.Stdin. It uses a cancelable reader
// when the platform supports it, so Close interrupts a pending Read.
type Stdin struct {
	file             *os.File
	cancellableStdin cancelreader.CancelReader
}

// NewStdin wraps f.
func NewStdin(f *os.File) *Stdin {
	out := Stdin{file: f}

	cancellableStdin, err := cancelreader.NewReader(f)
	if err != nil {
		return &out
	}

	out.cancellableStdin = cancellableStdin
	return &out
}

// Read reads from the file, using the cancelable reader if available.
func (s *Stdin) Read(p []byte) (int, error) {
	if s.cancellableStdin != nil {
		return s.cancellableStdin.Read(p)
	}
	return s.file.Read(p)
}

// Close cancels any pending read. The file itself stays open.
func (s *Stdin) Close() error {
	if s.cancellableStdin != nil {
		s.cancellableStdin.Cancel()
		return s.cancellableStdin.Close()
	}
	return nil
}

type result struct {
	data []byte
	err  error
}

// ReadAll reads r until EOF. If ctx is done first, r is closed and
// ctx.Err() is returned without waiting for the pending read.
func ReadAll(ctx context.Context, r io.ReadCloser) ([]byte, error) {
	ch := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(r)
		ch <- result{data, err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		r.Close()
		return nil, ctx.Err()
	}
}
