package pipeio

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestReadAll(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()

	go func() {
		w.Write([]byte("[[step]]\n"))
		w.Close()
	}()

	in := NewStdin(r)
	defer in.Close()

	data, err := ReadAll(context.Background(), in)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "[[step]]\n" {
		t.Errorf("ReadAll() = %q; want %q", data, "[[step]]\n")
	}
}

func TestReadAll_Cancel(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = ReadAll(ctx, NewStdin(r))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadAll() error = %v; want %v", err, context.DeadlineExceeded)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ReadAll() took %s after cancellation", elapsed)
	}
}

func TestStdin_CloseWithoutRead(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	in := NewStdin(r)
	if err := in.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
