// Package mocktest wires a mock.Server into the lifecycle of a Go test:
// the server starts when created and is verified when the test finishes.
//
//	func TestClient(t *testing.T) {
//		srv := mocktest.New(t, 0)
//		srv.Expect([]byte("PING"))
//		srv.Respond([]byte("PONG"))
//		runClient(t, srv.Addr().String())
//	}
package mocktest

import (
	"time"

	"tcpmock/mockingjay/pkg/config"
	"tcpmock/mockingjay/pkg/log"
	"tcpmock/mockingjay/pkg/mock"
)

// TB is the subset of testing.TB the adapter needs.
type TB interface {
	Helper()
	Cleanup(func())
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Option customizes the server config.
type Option func(*config.Config)

// WithTimeout bounds teardown verification and response writes.
func WithTimeout(d time.Duration) Option {
	return func(c *config.Config) { c.Timeout = d }
}

// WithHost sets the interface to listen on.
func WithHost(host string) Option {
	return func(c *config.Config) { c.Host = host }
}

// WithVerbose enables verbose logging to stderr.
func WithVerbose() Option {
	return func(c *config.Config) { c.Verbose = true }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *config.Config) { c.Logger = l }
}

// WithTranscript records the connection's traffic to path.
func WithTranscript(path string) Option {
	return func(c *config.Config) { c.TranscriptFile = path }
}

// WithDependencies injects the network used by the server, for instance
// the in-memory network of mocks/tcp.
func WithDependencies(deps *config.Dependencies) Option {
	return func(c *config.Config) { c.Deps = deps }
}

// New starts a mock server on port (0 for an ephemeral one) and registers
// its verification as a cleanup of t. A bind failure stops the test.
func New(t TB, port int, opts ...Option) *mock.Server {
	t.Helper()

	cfg := config.New(port)
	for _, opt := range opts {
		opt(cfg)
	}

	srv := mock.New(cfg)
	if err := srv.Before(); err != nil {
		t.Fatalf("mock server on port %d: %s", port, err)
		return srv
	}

	t.Cleanup(func() {
		if err := srv.After(); err != nil {
			t.Errorf("%s", err)
		}
	})
	return srv
}
