package clone

import (
	"context"
	"fmt"
	"sync"

	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
)

// Reader performs a bulk CloneRead over a Plan: a small mutex-guarded
// struct that accumulates state (here, a RawCodeplug) across many small
// request/reply exchanges.
type Reader struct {
	d   *xcmp.Dispatcher
	log *logger.Logger
	hub Publisher

	mu  sync.Mutex
	raw *codeplug.RawCodeplug
}

// NewReader binds a Reader to an already-initialized Dispatcher. hub may
// be nil.
func NewReader(d *xcmp.Dispatcher, hub Publisher, log *logger.Logger) *Reader {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Reader{d: d, hub: hub, log: log.WithComponent("clone.reader"), raw: codeplug.NewRawCodeplug()}
}

// Read walks plan in order, issuing one CloneReadRequest per record and
// recording the decoded reply bytes into a RawCodeplug. progress is called
// synchronously after every record with a monotonically increasing
// fraction; ctx cancellation aborts between records (§4.F, §5: I/O holds
// no lock across a blocking call — Request itself is the only blocking
// step per iteration).
func (r *Reader) Read(ctx context.Context, plan Plan, progress ProgressFunc) (*codeplug.RawCodeplug, error) {
	total := len(plan)
	if total == 0 {
		return codeplug.NewRawCodeplug(), nil
	}

	for i, key := range plan {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("clone: read cancelled at record %d/%d: %w", i, total, ctx.Err())
		default:
		}

		req := xcmp.CloneReadRequest{ZoneIndex: key.ZoneIndex, ChannelIndex: key.ChannelIndex, DataType: byte(key.DataType)}
		body, err := r.d.Request(xcmp.OpCloneRead, req.Encode())
		if err != nil {
			return nil, fmt.Errorf("clone: read (zone %d, channel %d, type %d): %w", key.ZoneIndex, key.ChannelIndex, key.DataType, err)
		}
		reply, err := xcmp.ParseCloneReadReply(body)
		if err != nil {
			return nil, fmt.Errorf("clone: parse read reply (zone %d, channel %d, type %d): %w", key.ZoneIndex, key.ChannelIndex, key.DataType, err)
		}
		if reply.ErrorCode != xcmp.ErrOK {
			return nil, fmt.Errorf("clone: device error 0x%02X reading (zone %d, channel %d, type %d)", reply.ErrorCode, key.ZoneIndex, key.ChannelIndex, key.DataType)
		}

		r.mu.Lock()
		r.raw.Put(key, reply.Data)
		r.mu.Unlock()

		frac := float64(i+1) / float64(total)
		p := Progress{Fraction: frac, Phase: "reading"}
		if progress != nil {
			progress(p)
		}
		publish(r.hub, p)
	}

	r.log.Info("clone read complete", logger.Int("records", total))
	return r.raw, nil
}
