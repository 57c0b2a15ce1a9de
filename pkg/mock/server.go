// Package mock provides a TCP server that impersonates the peer of a
// socket-speaking client under test.
//
// A test declares what the client must send next through the Expected
// sink and what to reply once it has, through the Response sink. Both are
// flush-delimited: nothing is visible to the server until Flush. Expectation
// flushes extend the current window, a response flush closes it, so
//
//	srv.Expected().Write([]byte("AB"))
//	srv.Expected().Flush()
//	srv.Response().Write([]byte("R1"))
//	srv.Response().Flush()
//
// replies "R1" once the client has sent exactly "AB". At teardown, Verify
// reports every mismatch, unmatched remainder and unsent response.
//
// A Server accepts exactly one connection per Before/Verify cycle.
package mock

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tcpmock/mockingjay/pkg/config"
	"tcpmock/mockingjay/pkg/engine"
	"tcpmock/mockingjay/pkg/log"
	"tcpmock/mockingjay/pkg/sink"
	"tcpmock/mockingjay/pkg/transport"
	"tcpmock/mockingjay/pkg/transport/tcp"
	"tcpmock/mockingjay/pkg/verify"
)

var (
	// ErrNotStarted is returned by Verify if Before was never called.
	ErrNotStarted = errors.New("mock server not started")
	// ErrAlreadyStarted is returned by Before while a session is running.
	ErrAlreadyStarted = errors.New("mock server already started")
)

// Server is a single-connection mock TCP server.
type Server struct {
	cfg    *config.Config
	id     string
	logger *log.Logger

	expected *sink.Sink
	response *sink.Sink

	mu       sync.Mutex
	eng      *engine.Engine
	listener *tcp.Listener
	running  bool
	once     *sync.Once
	outcome  error
}

// New creates a server for cfg. Nothing is bound until Before.
func New(cfg *config.Config) *Server {
	id := uuid.NewString()[:8]

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.Verbose)
	}
	logger = logger.WithPrefix(id)

	s := &Server{
		cfg:    cfg,
		id:     id,
		logger: logger,
		eng:    engine.New(cfg.GetTimeout(), logger),
	}
	s.expected = sink.New(sink.CommitFunc(func(p []byte) { s.engine().CommitExpectation(p) }))
	s.response = sink.New(sink.CommitFunc(func(p []byte) { s.engine().CommitResponse(p) }))
	return s
}

// ID identifies the server in log messages.
func (s *Server) ID() string {
	return s.id
}

// Before resets all state and starts listening. A bind failure is returned
// and the server stays stopped.
func (s *Server) Before() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}
	if errs := config.Validate(s.cfg); len(errs) > 0 {
		return errors.Errorf("invalid config: %v", errs)
	}

	eng := engine.New(s.cfg.GetTimeout(), s.logger)
	s.eng = eng
	s.listener = nil
	s.once = nil
	s.outcome = nil
	s.expected.Reset()
	s.response.Reset()

	l, err := tcp.NewListener(s.cfg.Addr(), s.cfg.Deps, s.logger)
	if err != nil {
		return errors.Wrap(err, "starting mock server")
	}
	l.Serve(func(conn net.Conn) { s.attach(eng, conn) })

	s.listener = l
	s.running = true
	s.once = &sync.Once{}

	s.logger.VerboseMsg("Listening on %s", l.Addr())
	return nil
}

func (s *Server) attach(eng *engine.Engine, conn net.Conn) {
	if s.cfg.TranscriptFile != "" {
		logged, err := log.NewLoggedConn(conn, s.cfg.TranscriptFile)
		if err != nil {
			s.logger.ErrorMsg("enabling transcript %s: %s", s.cfg.TranscriptFile, err)
		} else {
			conn = logged
		}
	}
	eng.Attach(conn)
}

func (s *Server) engine() *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng
}

// Expected returns the sink for bytes the client must send.
func (s *Server) Expected() *sink.Sink {
	return s.expected
}

// Response returns the sink for bytes to reply with.
func (s *Server) Response() *sink.Sink {
	return s.response
}

// Expect writes p to the expectation sink and flushes it.
func (s *Server) Expect(p []byte) error {
	if _, err := s.expected.Write(p); err != nil {
		return err
	}
	return s.expected.Flush()
}

// Respond writes p to the response sink and flushes it.
func (s *Server) Respond(p []byte) error {
	if _, err := s.response.Write(p); err != nil {
		return err
	}
	return s.response.Flush()
}

// RespondNothing completes the current window without sending anything,
// for protocols where the client does not wait for a reply.
func (s *Server) RespondNothing() {
	s.engine().CommitResponse(nil)
}

// Addr returns the listening address, or nil if the server is not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnState returns the state of the mock connection.
func (s *Server) ConnState() transport.State {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()

	if l == nil {
		return transport.NotStarted
	}
	if st := l.State(); st != transport.Connected {
		return st
	}
	return s.engine().Snapshot().Conn
}

// State returns the matching state of the current window.
func (s *Server) State() engine.State {
	return s.engine().State()
}

// Connected returns a channel that is closed once a client has been
// accepted. It is nil if the server is not running.
func (s *Server) Connected() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Accepted()
}

// Wait blocks until the client has stopped sending or a mismatch ended the
// conversation. It returns ctx.Err() if ctx is done first.
func (s *Server) Wait(ctx context.Context) error {
	eng := s.engine()
	for {
		changed := eng.Changed()
		if eng.State() == engine.Mismatched {
			return nil
		}
		if snap := eng.Snapshot(); snap.Conn == transport.Closed || snap.InputClosed {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Dial connects to the server the way a client under test would.
func (s *Server) Dial() (net.Conn, error) {
	addr := s.Addr()
	if addr == nil {
		return nil, ErrNotStarted
	}
	d, err := tcp.NewDialer(addr.String(), s.cfg.Deps)
	if err != nil {
		return nil, err
	}
	return d.Dial()
}

// Verify waits until the conversation settles or ctx is done, then
// releases the listener and the connection. It returns nil on success
// and a *verify.Failure otherwise. Only the first call per session does
// any work; later calls return the same outcome.
func (s *Server) Verify(ctx context.Context) error {
	s.mu.Lock()
	if s.once == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	once, eng, l := s.once, s.eng, s.listener
	s.mu.Unlock()

	once.Do(func() {
		outcome := s.verify(ctx, eng, l)

		s.mu.Lock()
		s.outcome = outcome
		s.running = false
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *Server) verify(ctx context.Context, eng *engine.Engine, l *tcp.Listener) error {
	// the engine stops first, so closing the connection is not mistaken
	// for a read failure
	defer l.Close()
	defer eng.Stop()

	unflushed := s.closeSinks()
	err := verify.Verify(ctx, eng)

	if len(unflushed) > 0 {
		failure, ok := err.(*verify.Failure)
		if !ok {
			failure = &verify.Failure{}
		}
		failure.Faults = append(failure.Faults, unflushed...)
		err = failure
	}

	if err != nil {
		s.logger.VerboseMsg("Verification failed: %s", err)
	} else {
		s.logger.VerboseMsg("Verification passed")
	}
	return err
}

func (s *Server) closeSinks() []engine.Fault {
	var faults []engine.Fault
	for _, snk := range []struct {
		name string
		s    *sink.Sink
	}{{"expectation", s.expected}, {"response", s.response}} {
		snk.s.Close()
		if n := snk.s.Buffered(); n > 0 {
			faults = append(faults, engine.Fault{
				Kind:   engine.UnflushedBytes,
				Detail: fmt.Sprintf("%d bytes written to the %s sink were never flushed", n, snk.name),
			})
		}
	}
	return faults
}

// After runs Verify bounded by the configured timeout.
func (s *Server) After() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetTimeout())
	defer cancel()
	return s.Verify(ctx)
}
