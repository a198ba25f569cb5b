package xcmp

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/xnl"
)

// Broadcast is an unsolicited XCMP broadcast observed while a Request was
// outstanding, or delivered to a caller polling Broadcasts directly.
type Broadcast struct {
	Opcode  Opcode
	Payload []byte
}

// Dispatcher provides XCMP request/reply matching and broadcast routing over
// an xnl.Session's SendXCMP/RecvFrame primitives. It enforces a
// single-outstanding-request discipline (§4.D): Request blocks until its
// reply (matched by txid) arrives, an error occurs, or the timeout elapses.
type Dispatcher struct {
	sess    *xnl.Session
	log     *logger.Logger
	timeout time.Duration

	initComplete bool
	broadcasts   chan Broadcast
}

// NewDispatcher wraps sess. timeout bounds each Request (§4.D: 2s default).
func NewDispatcher(sess *xnl.Session, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Dispatcher{
		sess:       sess,
		log:        log.WithComponent("xcmp.dispatcher"),
		timeout:    timeout,
		broadcasts: make(chan Broadcast, 16),
	}
}

// Broadcasts returns the channel unsolicited broadcasts are delivered to
// while a Request is outstanding. WaitForInit consumes the init-status
// broadcasts itself and delivers nothing to this channel.
func (d *Dispatcher) Broadcasts() <-chan Broadcast { return d.broadcasts }

// WaitForInit blocks until the device-init handshake completes: it replies
// to the first DeviceInitStatusBroadcast(0xB400) with minimal capabilities,
// then waits for status InitStatusComplete. No Request may be issued before
// this returns successfully (§4.D init gate, property 7).
func (d *Dispatcher) WaitForInit(overallTimeout time.Duration) error {
	deadline := time.Now().Add(overallTimeout)
	repliedToFirst := false

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("xcmp: device-init handshake did not complete within %s", overallTimeout)
		}
		frameTimeout := d.timeout
		if remaining < frameTimeout {
			frameTimeout = remaining
		}
		f, err := d.sess.RecvFrame(frameTimeout, "device_init")
		if err != nil {
			return err
		}
		if f.Opcode != xnl.OpcodeDataMessage {
			continue
		}
		op, body, err := decodeXCMP(f.Payload)
		if err != nil || op != OpDeviceInitStatus.Broadcast() {
			continue
		}
		status, err := ParseDeviceInitStatusBroadcast(body)
		if err != nil {
			continue
		}

		if !repliedToFirst {
			if _, err := d.sess.SendXCMP(encodeXCMP(OpDeviceInitStatus.Broadcast(), []byte{0x00})); err != nil {
				return err
			}
			repliedToFirst = true
		}

		d.log.Debug("device init status", logger.Uint32("status", uint32(status.Status)))
		if status.Status == InitStatusComplete {
			d.initComplete = true
			return nil
		}
	}
}

// Request sends an XCMP request and blocks for its matching reply. It
// returns an error if WaitForInit has not yet completed successfully.
func (d *Dispatcher) Request(op Opcode, payload []byte) ([]byte, error) {
	if !d.initComplete {
		return nil, fmt.Errorf("xcmp: Request(0x%04X) issued before device-init gate opened", op)
	}

	txid, err := d.sess.SendXCMP(encodeXCMP(op, payload))
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("xcmp: request 0x%04X (txid 0x%04X) timed out", op, txid)
		}
		f, err := d.sess.RecvFrame(remaining, "xcmp_request")
		if err != nil {
			return nil, err
		}
		if f.Opcode != xnl.OpcodeDataMessage {
			continue
		}
		replyOp, body, err := decodeXCMP(f.Payload)
		if err != nil {
			continue
		}
		if f.TxID != txid {
			if replyOp.IsBroadcast() {
				d.routeBroadcast(Broadcast{Opcode: replyOp, Payload: body})
			}
			continue
		}
		if replyOp != op.Reply() {
			return nil, fmt.Errorf("xcmp: request 0x%04X got reply opcode 0x%04X", op, replyOp)
		}
		return body, nil
	}
}

func (d *Dispatcher) routeBroadcast(b Broadcast) {
	select {
	case d.broadcasts <- b:
	default:
		d.log.Warn("broadcast channel full, dropping", logger.Uint32("opcode", uint32(b.Opcode)))
	}
}

func encodeXCMP(op Opcode, body []byte) []byte {
	buf := make([]byte, 2, 2+len(body))
	binary.BigEndian.PutUint16(buf, uint16(op))
	return append(buf, body...)
}

func decodeXCMP(data []byte) (Opcode, []byte, error) {
	if len(data) < 2 {
		return 0, nil, fmt.Errorf("xcmp: payload too short for opcode: %d bytes", len(data))
	}
	return Opcode(binary.BigEndian.Uint16(data[0:2])), data[2:], nil
}
