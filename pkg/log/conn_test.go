package log

import (
	"bytes"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

// mockConn implements net.Conn for testing
type mockConn struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

func newMockConn() *mockConn {
	return &mockConn{
		readBuf:  new(bytes.Buffer),
		writeBuf: new(bytes.Buffer),
	}
}

func (m *mockConn) Read(b []byte) (int, error)         { return m.readBuf.Read(b) }
func (m *mockConn) Write(b []byte) (int, error)        { return m.writeBuf.Write(b) }
func (m *mockConn) Close() error                       { m.closed = true; return nil }
func (m *mockConn) LocalAddr() net.Addr                { return &net.TCPAddr{Port: 8080} }
func (m *mockConn) RemoteAddr() net.Addr               { return &net.TCPAddr{Port: 9090} }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func TestNewLoggedConn(t *testing.T) {
	tmpFile := t.TempDir() + "/transcript.log"

	loggedConn, err := NewLoggedConn(newMockConn(), tmpFile)
	if err != nil {
		t.Fatalf("NewLoggedConn() error = %v", err)
	}
	defer loggedConn.Close()

	if _, err := os.Stat(tmpFile); os.IsNotExist(err) {
		t.Error("NewLoggedConn() did not create transcript file")
	}
}

func TestNewLoggedConn_BadPath(t *testing.T) {
	_, err := NewLoggedConn(newMockConn(), t.TempDir()+"/missing/dir/transcript.log")
	if err == nil {
		t.Error("NewLoggedConn() expected error for unwritable path")
	}
}

func TestLoggedConn_Transcript(t *testing.T) {
	tmpFile := t.TempDir() + "/transcript.log"
	conn := newMockConn()
	conn.readBuf.WriteString("PING")

	loggedConn, err := NewLoggedConn(conn, tmpFile)
	if err != nil {
		t.Fatalf("NewLoggedConn() error = %v", err)
	}

	buf := make([]byte, 4)
	if n, err := loggedConn.Read(buf); err != nil || n != 4 {
		t.Fatalf("Read() = %d, %v; want 4, nil", n, err)
	}
	if n, err := loggedConn.Write([]byte("PONG")); err != nil || n != 4 {
		t.Fatalf("Write() = %d, %v; want 4, nil", n, err)
	}
	if err := loggedConn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.closed {
		t.Error("Close() did not close the wrapped connection")
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	transcript := string(data)

	for _, want := range []string{"<< 4 bytes", ">> 4 bytes", "|PING|", "|PONG|"} {
		if !strings.Contains(transcript, want) {
			t.Errorf("transcript does not contain %q:\n%s", want, transcript)
		}
	}
	if strings.Index(transcript, "<<") > strings.Index(transcript, ">>") {
		t.Errorf("transcript out of order:\n%s", transcript)
	}
}

func TestLoggedConn_DoubleClose(t *testing.T) {
	loggedConn, err := NewLoggedConn(newMockConn(), t.TempDir()+"/transcript.log")
	if err != nil {
		t.Fatalf("NewLoggedConn() error = %v", err)
	}

	loggedConn.Close()
	if err := loggedConn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
