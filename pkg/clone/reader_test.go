package clone

import (
	"context"
	"testing"

	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
	"github.com/n5dmr/trbo-xnl/pkg/wire"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
	"github.com/n5dmr/trbo-xnl/pkg/xnl"
)

// cloneReadReplyBody builds the exact wire shape ParseCloneReadReply
// expects: error byte, 11-byte marker/index echo, 2-byte big-endian
// length, then the record bytes.
func cloneReadReplyBody(data []byte) []byte {
	out := []byte{xcmp.ErrOK}
	out = append(out, make([]byte, 11)...)
	out = append(out, byte(len(data)>>8), byte(len(data)))
	out = append(out, data...)
	return out
}

type recordingPublisher struct {
	events []Progress
}

func (p *recordingPublisher) Publish(pr Progress) { p.events = append(p.events, pr) }

func TestReader_Read_WalksPlanInOrder(t *testing.T) {
	r := startScriptedRadio(t)
	defer r.close()
	const xnlAddr = 0x0020

	sess, d := connectAndInit(t, r, xnlAddr)
	defer sess.Close()

	plan := BuildPlan(1, []int{2}, 0)
	pub := &recordingPublisher{}
	reader := NewReader(d, pub, nil)

	type result struct {
		raw *codeplug.RawCodeplug
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := reader.Read(context.Background(), plan, nil)
		done <- result{raw, err}
	}()

	for i, key := range plan {
		f := r.read(t)
		gotOp, body := xcmpDecode(t, f)
		if gotOp != xcmp.OpCloneRead {
			t.Fatalf("record %d: expected OpCloneRead, got 0x%04X", i, gotOp)
		}
		req, err := decodeCloneReadRequest(body)
		if err != nil {
			t.Fatalf("record %d: decode request: %v", i, err)
		}
		if req.ZoneIndex != key.ZoneIndex || req.ChannelIndex != key.ChannelIndex || codeplug.DataType(req.DataType) != key.DataType {
			t.Fatalf("record %d: request = %+v, want key %+v", i, req, key)
		}
		payload := []byte{byte(i), byte(i + 1)}
		r.write(t, wire.Frame{
			Opcode:   xnl.OpcodeDataMessage,
			Protocol: wire.ProtocolXCMP,
			Dst:      xnlAddr,
			TxID:     f.TxID,
			Payload:  xcmpEncode(xcmp.OpCloneRead.Reply(), cloneReadReplyBody(payload)),
		})
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("Read: %v", res.err)
	}
	if len(res.raw.Records) != len(plan) {
		t.Fatalf("got %d records, want %d", len(res.raw.Records), len(plan))
	}
	if len(pub.events) != len(plan) {
		t.Fatalf("publisher saw %d events, want %d", len(pub.events), len(plan))
	}
	if pub.events[len(pub.events)-1].Fraction != 1.0 {
		t.Fatalf("final progress fraction = %v, want 1.0", pub.events[len(pub.events)-1].Fraction)
	}
}

func TestReader_Read_StopsOnDeviceError(t *testing.T) {
	r := startScriptedRadio(t)
	defer r.close()
	const xnlAddr = 0x0021

	sess, d := connectAndInit(t, r, xnlAddr)
	defer sess.Close()

	plan := BuildPlan(1, []int{1}, 0)
	reader := NewReader(d, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := reader.Read(context.Background(), plan, nil)
		errCh <- err
	}()

	f := r.read(t)
	r.write(t, wire.Frame{
		Opcode:   xnl.OpcodeDataMessage,
		Protocol: wire.ProtocolXCMP,
		Dst:      xnlAddr,
		TxID:     f.TxID,
		Payload:  xcmpEncode(xcmp.OpCloneRead.Reply(), []byte{xcmp.ErrIncorrectMode}),
	})

	if err := <-errCh; err == nil {
		t.Fatal("expected device error to abort Read")
	}
}

func TestReader_Read_EmptyPlan(t *testing.T) {
	reader := NewReader(nil, nil, nil)
	raw, err := reader.Read(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Read with empty plan: %v", err)
	}
	if len(raw.Records) != 0 {
		t.Fatalf("expected no records for empty plan, got %d", len(raw.Records))
	}
}

// decodeCloneReadRequest is the inverse of xcmp.CloneReadRequest.Encode,
// used only to assert the plan order the Reader issued requests in.
func decodeCloneReadRequest(body []byte) (xcmp.CloneReadRequest, error) {
	if len(body) != 10 {
		return xcmp.CloneReadRequest{}, errShortCloneReadRequest
	}
	return xcmp.CloneReadRequest{
		ZoneIndex:    uint16(body[2])<<8 | uint16(body[3]),
		ChannelIndex: uint16(body[6])<<8 | uint16(body[7]),
		DataType:     body[9],
	}, nil
}

var errShortCloneReadRequest = shortCloneReadRequestErr{}

type shortCloneReadRequestErr struct{}

func (shortCloneReadRequestErr) Error() string { return "clone read request body too short" }
