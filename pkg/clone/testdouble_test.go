package clone

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/n5dmr/trbo-xnl/internal/testhelpers"
	"github.com/n5dmr/trbo-xnl/pkg/wire"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
	"github.com/n5dmr/trbo-xnl/pkg/xnl"
)

// scriptedRadio layers the XNL handshake-then-XCMP-script sequence that
// pkg/xcmp and pkg/program's tests also need on top of the shared
// testhelpers.Radio; xcmp.Dispatcher binds directly to *xnl.Session rather
// than an interface, so every package exercising it needs a live TCP peer
// to hand the session a real connection.
type scriptedRadio struct {
	*testhelpers.Radio
}

func startScriptedRadio(t *testing.T) *scriptedRadio {
	t.Helper()
	return &scriptedRadio{Radio: testhelpers.NewRadio(t)}
}

func (r *scriptedRadio) addr() (string, int) {
	return r.Addr()
}

func (r *scriptedRadio) write(t *testing.T, f wire.Frame) {
	r.WriteFrame(t, f)
}

func (r *scriptedRadio) read(t *testing.T) wire.Frame {
	return r.ReadFrame(t)
}

func (r *scriptedRadio) runHandshakeAndInit(t *testing.T, xnlAddr uint16) {
	t.Helper()
	r.Accept(t)

	r.write(t, wire.Frame{Opcode: xnl.OpcodeMasterStatusBroadcast, Payload: []byte{0x00, 0x01, xnl.DeviceTypeSubscriber}})
	r.write(t, wire.Frame{Opcode: xnl.OpcodeDevSysMapBroadcast, Payload: append([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 0x00)})
	r.read(t) // DeviceAuthKeyRequest
	r.write(t, wire.Frame{Opcode: xnl.OpcodeDeviceAuthKeyReply, Payload: make([]byte, 8)})
	r.read(t) // DeviceConnectionRequest

	var addrBuf [2]byte
	binary.BigEndian.PutUint16(addrBuf[:], xnlAddr)
	r.write(t, wire.Frame{Opcode: xnl.OpcodeDeviceConnectionReply, Payload: append([]byte{0x00}, addrBuf[:]...)})
}

func (r *scriptedRadio) close() {
	r.Close()
}

func xcmpEncode(op xcmp.Opcode, body []byte) []byte {
	buf := make([]byte, 2, 2+len(body))
	binary.BigEndian.PutUint16(buf, uint16(op))
	return append(buf, body...)
}

func xcmpDecode(t *testing.T, f wire.Frame) (xcmp.Opcode, []byte) {
	t.Helper()
	if len(f.Payload) < 2 {
		t.Fatalf("frame payload too short for xcmp opcode: %+v", f)
	}
	op := xcmp.Opcode(binary.BigEndian.Uint16(f.Payload[0:2]))
	return op, f.Payload[2:]
}

func (r *scriptedRadio) replyToNextRequest(t *testing.T, xnlAddr uint16, wantOp xcmp.Opcode, body []byte) {
	t.Helper()
	f := r.read(t)
	gotOp, _ := xcmpDecode(t, f)
	if gotOp != wantOp {
		t.Fatalf("expected request 0x%04X, got 0x%04X", wantOp, gotOp)
	}
	r.write(t, wire.Frame{
		Opcode:   xnl.OpcodeDataMessage,
		Protocol: wire.ProtocolXCMP,
		Dst:      xnlAddr,
		TxID:     f.TxID,
		Payload:  xcmpEncode(wantOp.Reply(), body),
	})
}

func connectAndInit(t *testing.T, r *scriptedRadio, xnlAddr uint16) (*xnl.Session, *xcmp.Dispatcher) {
	t.Helper()
	host, port := r.addr()

	go r.runHandshakeAndInit(t, xnlAddr)

	cfg := xnl.DefaultConfig()
	cfg.Host, cfg.Port = host, port
	cfg.Key = [16]byte{0x1D, 0x30, 0x96, 0x5A, 0x55, 0xAA, 0xF2, 0x0C, 0xC6, 0x6C, 0x93, 0xBF, 0x5B, 0xCD, 0x5E, 0xBD}
	sess, err := xnl.Connect(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("xnl.Connect: %v", err)
	}

	d := xcmp.NewDispatcher(sess, 2*time.Second, nil)
	initDone := make(chan error, 1)
	go func() { initDone <- d.WaitForInit(2 * time.Second) }()

	r.write(t, wire.Frame{Opcode: xnl.OpcodeDataMessage, Protocol: wire.ProtocolXCMP, Dst: xnlAddr, Payload: xcmpEncode(xcmp.OpDeviceInitStatus.Broadcast(), []byte{0x02})})
	r.read(t) // host's reply to first broadcast
	r.write(t, wire.Frame{Opcode: xnl.OpcodeDataMessage, Protocol: wire.ProtocolXCMP, Dst: xnlAddr, Payload: xcmpEncode(xcmp.OpDeviceInitStatus.Broadcast(), []byte{0x0F})})
	r.write(t, wire.Frame{Opcode: xnl.OpcodeDataMessage, Protocol: wire.ProtocolXCMP, Dst: xnlAddr, Payload: xcmpEncode(xcmp.OpDeviceInitStatus.Broadcast(), []byte{xcmp.InitStatusComplete})})

	if err := <-initDone; err != nil {
		t.Fatalf("WaitForInit: %v", err)
	}
	return sess, d
}
