// Package testhelpers provides a shared fake-radio TCP test double used by
// pkg/clone's tests to stand in for a
// real MOTOTRBO subscriber on the other end of an XNL connection: a TCP
// accept loop a test can script one wire.Frame at a time.
package testhelpers

import (
	"net"
	"testing"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/wire"
)

// Radio is a minimal TCP listener that accepts a single connection and lets
// a test script the bytes written back to whatever dials it, one
// wire.Frame at a time. Protocol-specific handshake and request/reply
// scripting lives in each package's own tests; Radio only owns the
// mechanical accept/read/write loop common to all of them.
type Radio struct {
	ln   net.Listener
	conn net.Conn
}

// NewRadio starts listening on an OS-assigned loopback port. Call Accept
// once a client has begun dialing (typically from a goroutine started
// before the client connects).
func NewRadio(t *testing.T) *Radio {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testhelpers: listen: %v", err)
	}
	return &Radio{ln: ln}
}

// Addr returns the host and port a client should dial.
func (r *Radio) Addr() (string, int) {
	a := r.ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", a.Port
}

// Accept blocks for the single client connection this radio will ever serve.
func (r *Radio) Accept(t *testing.T) {
	t.Helper()
	conn, err := r.ln.Accept()
	if err != nil {
		t.Fatalf("testhelpers: accept: %v", err)
	}
	r.conn = conn
}

// WriteFrame encodes and writes f to the accepted connection.
func (r *Radio) WriteFrame(t *testing.T, f wire.Frame) {
	t.Helper()
	if _, err := r.conn.Write(f.Encode()); err != nil {
		t.Fatalf("testhelpers: radio write: %v", err)
	}
}

// ReadFrame reads the next frame from the accepted connection, failing the
// test if none arrives within two seconds.
func (r *Radio) ReadFrame(t *testing.T) wire.Frame {
	t.Helper()
	_ = r.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := wire.ReadFrame(r.conn)
	if err != nil {
		t.Fatalf("testhelpers: radio read: %v", err)
	}
	return f
}

// Close tears down the accepted connection and the listener.
func (r *Radio) Close() {
	if r.conn != nil {
		_ = r.conn.Close()
	}
	_ = r.ln.Close()
}
