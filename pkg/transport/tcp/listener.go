// Package tcp provides the single-connection TCP listener of the mock server.
package tcp

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"

	"tcpmock/mockingjay/pkg/config"
	"tcpmock/mockingjay/pkg/log"
	"tcpmock/mockingjay/pkg/transport"
)

// Listener accepts exactly one connection.
type Listener struct {
	nl     net.Listener
	logger *log.Logger

	mu       sync.Mutex
	state    transport.State
	conn     net.Conn
	accepted chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewListener binds addr synchronously. A bind failure is returned to the
// caller, nothing runs in the background yet.
func NewListener(addr string, deps *config.Dependencies, logger *log.Logger) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "net.ResolveTCPAddr(tcp, %s)", addr)
	}

	var nl net.Listener
	if listen := config.GetTCPListenerFunc(deps); listen != nil {
		nl, err = listen("tcp", tcpAddr)
	} else {
		lc := listenConfig()
		nl, err = lc.Listen(context.Background(), "tcp", tcpAddr.String())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "listen(tcp, %s)", addr)
	}

	return &Listener{
		nl:       nl,
		logger:   logger,
		state:    transport.Listening,
		accepted: make(chan struct{}),
	}, nil
}

// Serve starts accepting in the background and returns immediately.
// The first connection goes to handle, every later one is closed.
func (l *Listener) Serve(handle transport.Handler) {
	l.wg.Add(1)
	go l.acceptLoop(handle)
}

func (l *Listener) acceptLoop(handle transport.Handler) {
	defer l.wg.Done()

	for {
		conn, err := l.nl.Accept()
		if err != nil {
			if l.State() != transport.Closed {
				l.logger.ErrorMsg("Accept(): %s", err)
			}
			return
		}

		l.mu.Lock()
		if l.state != transport.Listening {
			rejected := l.state == transport.Connected
			l.mu.Unlock()
			conn.Close() // we already handle a connection, or are shutting down
			if rejected {
				l.logger.VerboseMsg("Rejected extra connection from %s", conn.RemoteAddr())
			}
			continue
		}
		l.state = transport.Connected
		l.conn = conn
		close(l.accepted)
		l.mu.Unlock()

		l.logger.VerboseMsg("New TCP connection from %s", conn.RemoteAddr())
		handle(conn)
	}
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

// State returns the current connection state.
func (l *Listener) State() transport.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Accepted is closed once the first connection has been accepted.
func (l *Listener) Accepted() <-chan struct{} {
	return l.accepted
}

// Close closes the listening socket and the accepted connection, then waits
// for the accept loop to exit. It is safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.state = transport.Closed
		conn := l.conn
		l.mu.Unlock()

		err = l.nl.Close()
		if conn != nil {
			conn.Close()
		}
		l.wg.Wait()
	})
	return err
}
