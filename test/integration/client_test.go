package integration

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"gotest.tools/assert"
	"gotest.tools/assert/cmp"

	mocktcp "tcpmock/mockingjay/mocks/tcp"
	"tcpmock/mockingjay/pkg/config"
	"tcpmock/mockingjay/pkg/mocktest"
	"tcpmock/mockingjay/pkg/script"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// greet is the client under test: it speaks a tiny line protocol,
// introducing itself and returning the server's reply line.
func greet(dial func() (net.Conn, error), name string) (string, error) {
	conn, err := dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := fmt.Fprintf(conn, "HELLO %s\r\n", name); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", err
	}
	if _, err := conn.Write([]byte("BYE\r\n")); err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func tcpDialer(addr string) func() (net.Conn, error) {
	return func() (net.Conn, error) { return net.Dial("tcp", addr) }
}

type recordingTB struct {
	*testing.T
	errors []string
}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestGreet(t *testing.T) {
	t.Parallel()

	srv := mocktest.New(t, 0, mocktest.WithTimeout(time.Second))
	assert.NilError(t, srv.Expect([]byte("HELLO alice\r\n")))
	assert.NilError(t, srv.Respond([]byte("WELCOME alice\r\n")))
	assert.NilError(t, srv.Expect([]byte("BYE\r\n")))
	srv.RespondNothing()

	reply, err := greet(tcpDialer(srv.Addr().String()), "alice")
	assert.NilError(t, err)
	assert.Equal(t, reply, "WELCOME alice")
}

func TestGreet_Scripted(t *testing.T) {
	t.Parallel()

	sc, err := script.Parse(strings.NewReader(`
[[step]]
expect = "HELLO bob\r\n"
respond = "WELCOME bob\r\n"

[[step]]
expect = "BYE\r\n"
no_reply = true
`))
	assert.NilError(t, err)

	srv := mocktest.New(t, 0, mocktest.WithTimeout(time.Second))
	assert.NilError(t, sc.Apply(srv))

	reply, err := greet(tcpDialer(srv.Addr().String()), "bob")
	assert.NilError(t, err)
	assert.Equal(t, reply, "WELCOME bob")
}

func TestGreet_InMemoryNetwork(t *testing.T) {
	t.Parallel()

	network := mocktcp.NewMockTCPNetwork()
	deps := &config.Dependencies{TCPListener: network.ListenTCP, TCPDialer: network.DialTCP}

	srv := mocktest.New(t, 0, mocktest.WithTimeout(time.Second), mocktest.WithDependencies(deps))
	assert.NilError(t, srv.Expect([]byte("HELLO carol\r\n")))
	assert.NilError(t, srv.Respond([]byte("WELCOME carol\r\n")))
	assert.NilError(t, srv.Expect([]byte("BYE\r\n")))
	srv.RespondNothing()

	reply, err := greet(srv.Dial, "carol")
	assert.NilError(t, err)
	assert.Equal(t, reply, "WELCOME carol")
}

func TestGreet_WrongNameIsReported(t *testing.T) {
	t.Parallel()

	tb := &recordingTB{T: t}
	t.Cleanup(func() {
		assert.Equal(t, len(tb.errors), 1)
		assert.Assert(t, cmp.Contains(tb.errors[0], "expected 'a' (0x61), actual 'm' (0x6d)"))
	})

	srv := mocktest.New(tb, 0, mocktest.WithTimeout(time.Second))
	assert.NilError(t, srv.Expect([]byte("HELLO alice\r\n")))
	assert.NilError(t, srv.Respond([]byte("WELCOME alice\r\n")))

	done := make(chan error, 1)
	go func() {
		_, err := greet(tcpDialer(srv.Addr().String()), "mallory")
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NilError(t, srv.Wait(ctx))

	// verification closes the connection, which unblocks the client
	assert.Assert(t, srv.After() != nil)
	assert.Assert(t, <-done != nil)
}
