package tcp

import (
	"fmt"
	"io"
	"net"
	"time"
)

// DialFunc is a minimal dial function used by the test client.
// It matches the signature of MockTCPNetwork.DialTCP.
type DialFunc func(network string, laddr, raddr *net.TCPAddr) (net.Conn, error)

// Client is a byte-oriented test client playing the part of the system
// under test: it sends raw bytes, optionally split into small writes, and
// reads exact-length replies.
type Client struct {
	conn net.Conn
}

// NewClient creates and returns a connected Client using the provided dial function.
// network is typically "tcp" and addr is the address string to resolve (e.g. "127.0.0.1:8000").
func NewClient(dial DialFunc, network, addr string) (*Client, error) {
	if dial == nil {
		return nil, fmt.Errorf("dial func is nil")
	}
	if addr == "" {
		return nil, fmt.Errorf("remote address is empty")
	}

	raddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil, err
	}

	conn, err := dial(network, nil, raddr)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn}, nil
}

// Send writes p in a single Write call.
func (c *Client) Send(p []byte) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("client not connected")
	}
	_, err := c.conn.Write(p)
	return err
}

// SendFragmented writes p in chunks of at most size bytes.
func (c *Client) SendFragmented(p []byte, size int) error {
	if size < 1 {
		return fmt.Errorf("fragment size must be positive, got %d", size)
	}
	for len(p) > 0 {
		n := min(size, len(p))
		if err := c.Send(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// ReadN reads exactly n bytes or fails once timeout has elapsed.
func (c *Client) ReadN(n int, timeout time.Duration) ([]byte, error) {
	if c == nil || c.conn == nil {
		return nil, fmt.Errorf("client not connected")
	}
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() net.Conn {
	return c.conn
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
