package xnl

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/tea"
	"github.com/n5dmr/trbo-xnl/pkg/wire"
)

// fakeRadio accepts one connection and plays back the handshake frames a
// real radio would send, recording what the client sends back for assertion.
type fakeRadio struct {
	ln       net.Listener
	conn     net.Conn
	received []wire.Frame
}

func startFakeRadio(t *testing.T) *fakeRadio {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &fakeRadio{ln: ln}
}

func (r *fakeRadio) addr() (string, int) {
	tcpAddr := r.ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", tcpAddr.Port
}

func (r *fakeRadio) accept(t *testing.T) {
	t.Helper()
	conn, err := r.ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	r.conn = conn
}

func (r *fakeRadio) send(t *testing.T, f wire.Frame) {
	t.Helper()
	if _, err := r.conn.Write(f.Encode()); err != nil {
		t.Fatalf("fakeRadio send: %v", err)
	}
}

func (r *fakeRadio) recv(t *testing.T) wire.Frame {
	t.Helper()
	_ = r.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := wire.ReadFrame(r.conn)
	if err != nil {
		t.Fatalf("fakeRadio recv: %v", err)
	}
	r.received = append(r.received, f)
	return f
}

func (r *fakeRadio) close() {
	if r.conn != nil {
		_ = r.conn.Close()
	}
	_ = r.ln.Close()
}

const testKeyHex = "1D30965A55AAF20CC66C93BF5BCD5EBD"

func testKey() [16]byte {
	var k [16]byte
	b := []byte{0x1D, 0x30, 0x96, 0x5A, 0x55, 0xAA, 0xF2, 0x0C, 0xC6, 0x6C, 0x93, 0xBF, 0x5B, 0xCD, 0x5E, 0xBD}
	copy(k[:], b)
	return k
}

// playHandshake drives the fakeRadio through a full successful XNL
// handshake, assigning assignedAddr as the session's xnl address.
func playHandshake(t *testing.T, r *fakeRadio, authSeed [8]byte, assignedAddr uint16) {
	t.Helper()

	r.accept(t)

	r.send(t, wire.Frame{Opcode: OpcodeMasterStatusBroadcast, Payload: []byte{0x00, 0x01, DeviceTypeSubscriber}})

	r.send(t, wire.Frame{
		Opcode:  OpcodeDevSysMapBroadcast,
		Payload: append(authSeed[:], 0x00),
	})
	r.recv(t) // DeviceAuthKeyRequest

	r.send(t, wire.Frame{Opcode: OpcodeDeviceAuthKeyReply, Payload: []byte{0, 0, 0, 0, 0, 0, 0, 0}})
	connReq := r.recv(t) // DeviceConnectionRequest
	if connReq.Opcode != OpcodeDeviceConnectionReq {
		t.Fatalf("expected DeviceConnectionRequest, got opcode 0x%02X", connReq.Opcode)
	}

	var addrBuf [2]byte
	addrBuf[0] = byte(assignedAddr >> 8)
	addrBuf[1] = byte(assignedAddr)
	r.send(t, wire.Frame{
		Opcode:  OpcodeDeviceConnectionReply,
		Payload: append([]byte{0x00}, addrBuf[:]...),
	})
}

func TestConnect_SuccessfulHandshake(t *testing.T) {
	r := startFakeRadio(t)
	defer r.close()
	host, port := r.addr()

	authSeed := [8]byte{0x77, 0xDD, 0x37, 0xCF, 0x7F, 0xC9, 0x2E, 0x98}
	errCh := make(chan error, 1)
	var sess *Session
	go func() {
		cfg := DefaultConfig()
		cfg.Host, cfg.Port = host, port
		cfg.Key = testKey()
		var err error
		sess, err = Connect(context.Background(), cfg, nil)
		errCh <- err
	}()

	playHandshake(t, r, authSeed, 0x001B)

	if err := <-errCh; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	if sess.State() != Ready {
		t.Fatalf("expected state Ready, got %s", sess.State())
	}
	if sess.XNLAddr() != 0x001B {
		t.Fatalf("expected xnl_addr 0x001B, got 0x%04X", sess.XNLAddr())
	}

	// The DeviceConnectionRequest's encrypted seed must equal the S1 vector
	// for this key/seed pair (cross-check against the tea package).
	c := tea.New(testKey(), tea.DefaultDelta)
	want := c.Encrypt8(authSeed)
	got := r.received[1] // DeviceConnectionRequest
	if len(got.Payload) != 9 {
		t.Fatalf("expected 9-byte connection request payload, got %d", len(got.Payload))
	}
	if got.Payload[0] != 0x00 {
		t.Fatalf("expected auth_index 0x00, got 0x%02X", got.Payload[0])
	}
	var encSeed [8]byte
	copy(encSeed[:], got.Payload[1:9])
	if encSeed != want {
		t.Fatalf("encrypted seed = % X, want % X", encSeed, want)
	}
}

func TestConnect_RejectsNonSubscriberDeviceType(t *testing.T) {
	r := startFakeRadio(t)
	defer r.close()
	host, port := r.addr()

	errCh := make(chan error, 1)
	go func() {
		cfg := DefaultConfig()
		cfg.Host, cfg.Port = host, port
		cfg.Key = testKey()
		_, err := Connect(context.Background(), cfg, nil)
		errCh <- err
	}()

	r.accept(t)
	r.send(t, wire.Frame{Opcode: OpcodeMasterStatusBroadcast, Payload: []byte{0x00, 0x01, 0x02}}) // not subscriber

	err := <-errCh
	if err == nil {
		t.Fatal("expected error for non-subscriber device_type")
	}
	xerr, ok := err.(*Error)
	if !ok || xerr.Kind != KindAuthFailed {
		t.Fatalf("expected KindAuthFailed, got %v", err)
	}
}

func TestConnect_TimesOutWithoutMasterStatus(t *testing.T) {
	r := startFakeRadio(t)
	defer r.close()
	host, port := r.addr()

	cfg := DefaultConfig()
	cfg.Host, cfg.Port = host, port
	cfg.Key = testKey()
	cfg.FrameTimeout = 50 * time.Millisecond
	cfg.HandshakeBudget = 100 * time.Millisecond

	errCh := make(chan error, 1)
	go func() {
		_, err := Connect(context.Background(), cfg, nil)
		errCh <- err
	}()

	r.accept(t)
	// never send MasterStatusBroadcast

	err := <-errCh
	if err == nil {
		t.Fatal("expected timeout error")
	}
	xerr, ok := err.(*Error)
	if !ok || xerr.Kind != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", err)
	}
}

// Properties 4 & 5: flags increments with no repeats, and txid's upper byte
// is (xnl_addr+1)&0xFF with the lower byte incrementing per request.
func TestSendXCMP_MessageIDDiscipline(t *testing.T) {
	r := startFakeRadio(t)
	defer r.close()
	host, port := r.addr()

	errCh := make(chan error, 1)
	var sess *Session
	go func() {
		cfg := DefaultConfig()
		cfg.Host, cfg.Port = host, port
		cfg.Key = testKey()
		var err error
		sess, err = Connect(context.Background(), cfg, nil)
		errCh <- err
	}()

	playHandshake(t, r, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 0x001B)
	if err := <-errCh; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	var txids []uint16
	var flagsSeen []byte
	for i := 0; i < 5; i++ {
		txid, err := sess.SendXCMP([]byte{0x00, byte(i)})
		if err != nil {
			t.Fatalf("SendXCMP[%d]: %v", i, err)
		}
		txids = append(txids, txid)
		f := r.recv(t)
		flagsSeen = append(flagsSeen, f.Flags)
		_ = txid
	}

	wantFlags := []byte{0x02, 0x03, 0x04, 0x05, 0x06}
	for i, want := range wantFlags {
		if flagsSeen[i] != want {
			t.Fatalf("flags[%d] = 0x%02X, want 0x%02X", i, flagsSeen[i], want)
		}
	}

	wantUpper := byte((0x001B + 1) & 0xFF)
	for i, txid := range txids {
		upper := byte(txid >> 8)
		lower := byte(txid)
		if upper != wantUpper {
			t.Fatalf("txid[%d] upper byte = 0x%02X, want 0x%02X", i, upper, wantUpper)
		}
		if lower != byte(i+1) {
			t.Fatalf("txid[%d] lower byte = 0x%02X, want 0x%02X", i, lower, byte(i+1))
		}
	}
}

func TestSendXCMP_NeverEmitsDataMessageAck(t *testing.T) {
	// Property 6: the host never sends opcode 0x0C. SendXCMP always stamps
	// OpcodeDataMessage; there is no code path in this package that emits
	// OpcodeDataMessageAck, which this asserts structurally.
	if OpcodeDataMessage == OpcodeDataMessageAck {
		t.Fatal("OpcodeDataMessage must differ from OpcodeDataMessageAck")
	}
}
