package serve

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tcpmock/mockingjay/pkg/config"
	"tcpmock/mockingjay/pkg/engine"
	"tcpmock/mockingjay/pkg/script"
	"tcpmock/mockingjay/pkg/verify"
)

const pingPong = `
[[step]]
expect = "PING"
respond = "PONG"
`

func mustParse(t *testing.T, s string) *script.Script {
	t.Helper()

	sc, err := script.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("script.Parse() error = %v", err)
	}
	return sc
}

func startServe(t *testing.T, ctx context.Context, sc *script.Script) (net.Addr, <-chan error) {
	t.Helper()

	cfg := config.New(0)
	cfg.Timeout = time.Second

	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, sc, ready) }()

	select {
	case addr := <-ready:
		return addr, done
	case err := <-done:
		t.Fatalf("serve() returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve() did not start listening")
	}
	return nil, nil
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("serve() did not return")
		return nil
	}
}

func TestServe_Success(t *testing.T) {
	t.Parallel()

	addr, done := startServe(t, context.Background(), mustParse(t, pingPong))

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("PING")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "PONG" {
		t.Errorf("reply = %q; want %q", buf, "PONG")
	}
	conn.Close()

	if err := waitDone(t, done); err != nil {
		t.Errorf("serve() error = %v", err)
	}
}

func TestServe_Mismatch(t *testing.T) {
	t.Parallel()

	addr, done := startServe(t, context.Background(), mustParse(t, pingPong))

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("PANG")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	err = waitDone(t, done)
	var failure *verify.Failure
	if !errors.As(err, &failure) || !failure.Has(engine.Mismatch) {
		t.Errorf("serve() error = %v; want a mismatch", err)
	}
}

func TestServe_Interrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	_, done := startServe(t, ctx, mustParse(t, pingPong))
	cancel()

	err := waitDone(t, done)
	var failure *verify.Failure
	if !errors.As(err, &failure) || !failure.Has(engine.NoConnection) {
		t.Errorf("serve() error = %v; want no connection", err)
	}
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conv.toml")
	if err := os.WriteFile(path, []byte(pingPong), 0o600); err != nil {
		t.Fatal(err)
	}

	sc, err := loadScript(context.Background(), &config.Serve{ScriptPath: path}, nil)
	if err != nil {
		t.Fatalf("loadScript(%s) error = %v", path, err)
	}
	if len(sc.Steps) != 1 {
		t.Errorf("loadScript(%s) has %d steps; want 1", path, len(sc.Steps))
	}

	if _, err := loadScript(context.Background(), &config.Serve{ScriptPath: path + ".missing"}, nil); err == nil {
		t.Error("loadScript() of a missing file should fail")
	}
}

func TestLoadScript_Stdin(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	go func() {
		w.Write([]byte(pingPong))
		w.Close()
	}()

	sc, err := loadScript(context.Background(), &config.Serve{ScriptPath: "-"}, r)
	if err != nil {
		t.Fatalf("loadScript(-) error = %v", err)
	}
	if len(sc.Steps) != 1 || sc.Steps[0].Expect != "PING" {
		t.Errorf("loadScript(-) = %+v", sc.Steps)
	}
}

func TestCommand_RejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()
	err := cmd.Run(context.Background(), []string{"serve", "--port", "70000"})
	if err == nil {
		t.Fatal("Run() with invalid arguments should fail")
	}
}

func TestGetFlags(t *testing.T) {
	t.Parallel()

	found := false
	for _, f := range getFlags() {
		if f.Names()[0] == scriptFlag {
			found = true
		}
	}
	if !found {
		t.Errorf("flag %q not found", scriptFlag)
	}
}
