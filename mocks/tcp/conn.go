package tcp

import (
	"net"
	"sync/atomic"
)

// MockTCPConn is a mock implementation of net.TCPConn. It counts the bytes
// passing through it so tests can check what a peer actually sent.
type MockTCPConn struct {
	net.Conn
	localAddr  *net.TCPAddr
	remoteAddr *net.TCPAddr

	read    atomic.Int64
	written atomic.Int64
}

// Read reads from the pipe and counts the bytes.
func (c *MockTCPConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.read.Add(int64(n))
	return n, err
}

// Write writes to the pipe and counts the bytes.
func (c *MockTCPConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.written.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *MockTCPConn) BytesRead() int64 { return c.read.Load() }

// BytesWritten returns the number of bytes written so far.
func (c *MockTCPConn) BytesWritten() int64 { return c.written.Load() }

// LocalAddr returns the local network address.
func (c *MockTCPConn) LocalAddr() net.Addr {
	if c.localAddr != nil {
		return c.localAddr
	}
	return c.Conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *MockTCPConn) RemoteAddr() net.Addr {
	if c.remoteAddr != nil {
		return c.remoteAddr
	}
	return c.Conn.RemoteAddr()
}

var _ net.Conn = (*MockTCPConn)(nil)
