// Package xnl implements the XNL transport session: TCP framing, the
// authentication handshake, and the send/receive primitives the XCMP layer
// is built on (§4.C).
package xnl

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/tea"
	"github.com/n5dmr/trbo-xnl/pkg/wire"
)

// State is one state of the per-connection XNL handshake state machine.
type State int

const (
	Connecting State = iota
	WaitMaster
	WaitSysMap
	WaitAuthKey
	WaitConn
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case WaitMaster:
		return "WaitMaster"
	case WaitSysMap:
		return "WaitSysMap"
	case WaitAuthKey:
		return "WaitAuthKey"
	case WaitConn:
		return "WaitConn"
	case Ready:
		return "Ready"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// XNL control opcodes (§4.C). The distilled spec names DevSysMapBroadcast and
// DeviceAuthKeyReply with the same opcode (0x05); see DESIGN.md for why
// DeviceAuthKeyReply is assigned 0x08 here instead — the next unused slot in
// the observed sequential numbering before DeviceConnectionReply(0x09).
const (
	OpcodeMasterStatusBroadcast byte = 0x02
	OpcodeDeviceMasterQuery     byte = 0x03
	OpcodeDeviceAuthKeyRequest  byte = 0x04
	OpcodeDevSysMapBroadcast    byte = 0x05
	OpcodeDeviceConnectionReq   byte = 0x06
	OpcodeDeviceAuthKeyReply    byte = 0x08
	OpcodeDeviceConnectionReply byte = 0x09
	OpcodeDataMessage           byte = 0x0B
	OpcodeDataMessageAck        byte = 0x0C
)

// DeviceTypeSubscriber is the only device_type MasterStatusBroadcast may
// carry for this client; any other value is rejected per §4.C.
const DeviceTypeSubscriber byte = 0x01

// Config configures a session's timing and encryption parameters. It is
// validated by Valid before Connect dials out, mirroring the config
// validation pattern used elsewhere in the stack.
type Config struct {
	Host string
	Port int

	Key   [16]byte
	Delta uint32 // 0 means tea.DefaultDelta

	ConnectTimeout  time.Duration
	FrameTimeout    time.Duration
	HandshakeBudget time.Duration
}

// DefaultConfig returns the timing defaults from §4.C and §5: 2s per-frame,
// 10s handshake budget, 10s connect timeout, and port 8002. Host and Key
// are left for the caller to fill in.
func DefaultConfig() Config {
	return Config{
		Port:            8002,
		ConnectTimeout:  10 * time.Second,
		FrameTimeout:    2 * time.Second,
		HandshakeBudget: 10 * time.Second,
	}
}

// Valid reports whether the configuration's timing parameters are usable.
func (c Config) Valid() error {
	if c.Host == "" {
		return fmt.Errorf("xnl: config.Host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("xnl: config.Port %d out of range", c.Port)
	}
	if c.ConnectTimeout <= 0 || c.FrameTimeout <= 0 || c.HandshakeBudget <= 0 {
		return fmt.Errorf("xnl: config timeouts must be positive")
	}
	return nil
}

// Session is one authenticated XNL transport connection. A Session is
// single-use: do not reuse it across logical read/write operations (§5).
type Session struct {
	cfg    Config
	conn   net.Conn
	log    *logger.Logger
	cipher *tea.Cipher

	state      State
	masterAddr uint16
	xnlAddr    uint16

	msgID  byte   // next flags value for an outgoing DataMessage
	txSeq  byte   // next low byte of txid
	closed bool
}

// Connect dials the radio and drives the handshake to Ready. It fails with a
// KindAuthFailed, KindFraming, KindTimeout, or KindTransport Error on any handshake
// problem; the caller should open a fresh Session to retry (§7).
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Session, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New(logger.Config{})
	}
	log = log.WithComponent("xnl.session")

	deadline := time.Now().Add(cfg.HandshakeBudget)
	hctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(hctx, "tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, transportErr("dial failed", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	s := &Session{
		cfg:    cfg,
		conn:   conn,
		log:    log,
		cipher: tea.New(cfg.Key, cfg.Delta),
		state:  Connecting,
	}

	if err := s.handshake(hctx); err != nil {
		_ = conn.Close()
		s.state = Closed
		return nil, err
	}

	return s, nil
}

func (s *Session) handshake(ctx context.Context) error {
	s.state = WaitMaster
	s.log.Debug("entering WaitMaster")
	mf, err := s.recvWithin(ctx, "handshake:wait_master")
	if err != nil {
		return err
	}
	if mf.Opcode != OpcodeMasterStatusBroadcast {
		return framingErr(fmt.Sprintf("expected MasterStatusBroadcast(0x%02X), got 0x%02X", OpcodeMasterStatusBroadcast, mf.Opcode), nil)
	}
	if len(mf.Payload) < 3 {
		return framingErr("MasterStatusBroadcast payload too short", nil)
	}
	s.masterAddr = be16(mf.Payload[0:2])
	deviceType := mf.Payload[2]
	if deviceType != DeviceTypeSubscriber {
		return authFailedErr(int(deviceType), "MasterStatusBroadcast device_type is not subscriber")
	}

	s.state = WaitSysMap
	s.log.Debug("entering WaitSysMap")
	sf, err := s.recvWithin(ctx, "handshake:wait_sysmap")
	if err != nil {
		return err
	}
	if sf.Opcode != OpcodeDevSysMapBroadcast {
		return framingErr(fmt.Sprintf("expected DevSysMapBroadcast(0x%02X), got 0x%02X", OpcodeDevSysMapBroadcast, sf.Opcode), nil)
	}
	if len(sf.Payload) < 9 {
		return framingErr("DevSysMapBroadcast payload too short", nil)
	}
	var authSeed [8]byte
	copy(authSeed[:], sf.Payload[0:8])

	if err := s.send(wire.Frame{
		Opcode:   OpcodeDeviceAuthKeyRequest,
		Protocol: wire.ProtocolRaw,
		Dst:      s.masterAddr,
	}); err != nil {
		return err
	}

	s.state = WaitAuthKey
	s.log.Debug("entering WaitAuthKey")
	af, err := s.recvWithin(ctx, "handshake:wait_auth_key")
	if err != nil {
		return err
	}
	if af.Opcode != OpcodeDeviceAuthKeyReply {
		return framingErr(fmt.Sprintf("expected DeviceAuthKeyReply(0x%02X), got 0x%02X", OpcodeDeviceAuthKeyReply, af.Opcode), nil)
	}

	encSeed := s.cipher.Encrypt8(authSeed)
	connPayload := append([]byte{0x00}, encSeed[:]...) // auth_index=0x00, encrypted seed
	if err := s.send(wire.Frame{
		Opcode:   OpcodeDeviceConnectionReq,
		Protocol: wire.ProtocolRaw,
		Dst:      s.masterAddr,
		Payload:  connPayload,
	}); err != nil {
		return err
	}

	s.state = WaitConn
	s.log.Debug("entering WaitConn")
	cf, err := s.recvWithin(ctx, "handshake:wait_conn")
	if err != nil {
		return err
	}
	if cf.Opcode != OpcodeDeviceConnectionReply {
		return framingErr(fmt.Sprintf("expected DeviceConnectionReply(0x%02X), got 0x%02X", OpcodeDeviceConnectionReply, cf.Opcode), nil)
	}
	if len(cf.Payload) < 3 {
		return framingErr("DeviceConnectionReply payload too short", nil)
	}
	result := cf.Payload[0]
	if result != 0x00 {
		return authFailedErr(int(result), "DeviceConnectionReply indicated failure")
	}
	s.xnlAddr = be16(cf.Payload[1:3])

	s.state = Ready
	s.msgID = 0x02 // initial flags value after authentication, per §4.C
	s.txSeq = 0x01
	s.log.Info("session ready", logger.Uint32("xnl_addr", uint32(s.xnlAddr)), logger.Uint32("master_addr", uint32(s.masterAddr)))
	return nil
}

func (s *Session) recvWithin(ctx context.Context, phase string) (wire.Frame, error) {
	budget := s.cfg.FrameTimeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < budget {
			budget = remaining
		}
	}
	return s.RecvFrame(budget, phase)
}

// RecvFrame reads one whole frame, blocking until it is complete or timeout
// elapses.
func (s *Session) RecvFrame(timeout time.Duration, phase string) (wire.Frame, error) {
	if s.closed {
		return wire.Frame{}, transportErr("session is closed", nil)
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return wire.Frame{}, transportErr("set read deadline failed", err)
	}
	f, err := wire.ReadFrame(s.conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return wire.Frame{}, timeoutErr(phase, err)
		}
		return wire.Frame{}, transportErr("read frame failed", err)
	}
	return f, nil
}

func (s *Session) send(f wire.Frame) error {
	if s.closed {
		return transportErr("session is closed", nil)
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.FrameTimeout)); err != nil {
		return transportErr("set write deadline failed", err)
	}
	if _, err := s.conn.Write(f.Encode()); err != nil {
		s.closed = true
		return transportErr("write frame failed", err)
	}
	return nil
}

// SendXCMP wraps payload in a DataMessage addressed to the master, stamping
// the next flags and txid values, and returns the assigned txid. The flags
// byte increments by one per message, wrapping modulo 256; opcode
// DataMessageAck(0x0C) is never emitted by this method or any other in this
// package, per §4.C.
func (s *Session) SendXCMP(payload []byte) (uint16, error) {
	if s.state != Ready {
		return 0, transportErr(fmt.Sprintf("SendXCMP called in state %s, want Ready", s.state), nil)
	}
	txid := uint16(((s.xnlAddr+1)&0xFF))<<8 | uint16(s.txSeq)
	f := wire.Frame{
		Opcode:   OpcodeDataMessage,
		Protocol: wire.ProtocolXCMP,
		Flags:    s.msgID,
		Dst:      s.masterAddr,
		Src:      s.xnlAddr,
		TxID:     txid,
		Payload:  payload,
	}
	if err := s.send(f); err != nil {
		return 0, err
	}
	s.msgID++
	s.txSeq++
	return txid, nil
}

// State returns the session's current handshake state.
func (s *Session) State() State { return s.state }

// Cipher returns the TEA cipher derived from this session's configured key
// and delta, for use by the programming-mode controller's radio-key
// unlock step (§4.E), which must encrypt with the same key/delta as
// authentication.
func (s *Session) Cipher() *tea.Cipher { return s.cipher }

// XNLAddr returns the address assigned to this session during authentication.
func (s *Session) XNLAddr() uint16 { return s.xnlAddr }

// MasterAddr returns the radio's master address observed during the
// handshake.
func (s *Session) MasterAddr() uint16 { return s.masterAddr }

// Close sends a TCP FIN and marks the session unusable.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.state = Closed
	return s.conn.Close()
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
