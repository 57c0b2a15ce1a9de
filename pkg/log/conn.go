package log

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// loggedConn wraps a net.Conn and records a hex transcript of all traffic.
type loggedConn struct {
	net.Conn
	logFile *os.File

	mu        sync.Mutex
	closeOnce sync.Once
}

func (lc *loggedConn) Read(b []byte) (int, error) {
	n, err := lc.Conn.Read(b)
	if n > 0 {
		if werr := lc.record("<<", b[:n]); werr != nil {
			return n, fmt.Errorf("reading: %s", werr)
		}
	}
	return n, err
}

func (lc *loggedConn) Write(b []byte) (int, error) {
	n, err := lc.Conn.Write(b)
	if n > 0 {
		if werr := lc.record(">>", b[:n]); werr != nil {
			return n, fmt.Errorf("writing: %s", werr)
		}
	}
	return n, err
}

func (lc *loggedConn) record(dir string, b []byte) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	header := fmt.Sprintf("%s %s %d bytes\n", time.Now().Format(time.RFC3339Nano), dir, len(b))
	if _, err := lc.logFile.WriteString(header); err != nil {
		return err
	}
	_, err := lc.logFile.WriteString(hex.Dump(b))
	return err
}

// Close closes the connection and the transcript file.
func (lc *loggedConn) Close() error {
	err := lc.Conn.Close()
	lc.closeOnce.Do(func() {
		lc.mu.Lock()
		lc.logFile.Close()
		lc.mu.Unlock()
	})
	return err
}

// NewLoggedConn wraps a network connection to record all data read from and
// written to it. The transcript file is created or appended to at the
// specified path. Received data is tagged "<<", sent data ">>".
func NewLoggedConn(conn net.Conn, logFilePath string) (net.Conn, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &loggedConn{Conn: conn, logFile: logFile}, nil
}
