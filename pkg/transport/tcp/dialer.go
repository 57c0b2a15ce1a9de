package tcp

import (
	"net"

	"github.com/pkg/errors"

	"tcpmock/mockingjay/pkg/config"
)

// Dialer connects test clients to a mock server, through the injected
// dialer when one is configured.
type Dialer struct {
	tcpAddr *net.TCPAddr
	dial    config.TCPDialerFunc
}

// NewDialer creates a dialer for the specified address.
func NewDialer(addr string, deps *config.Dependencies) (*Dialer, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "net.ResolveTCPAddr(tcp, %s)", addr)
	}

	return &Dialer{
		tcpAddr: tcpAddr,
		dial:    config.GetTCPDialerFunc(deps),
	}, nil
}

// Dial establishes a connection to the configured address.
func (d *Dialer) Dial() (net.Conn, error) {
	conn, err := d.dial("tcp", nil, d.tcpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial(tcp, %s)", d.tcpAddr)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return conn, nil
}
