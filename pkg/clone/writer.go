package clone

import (
	"context"
	"fmt"

	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/program"
	"github.com/n5dmr/trbo-xnl/pkg/validate"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
)

// writeBlockSize is the chunk size CloneWriteRequest transfers the packed
// codeplug image in. [NEEDS VERIFICATION] per spec.md §4.F, which leaves the
// framing record's content model-specific; 256 bytes keeps individual XCMP
// frames comfortably under wire.MaxPayload while still amortizing the
// per-request txid round trip over many blocks.
const writeBlockSize = 256

// WriteOptions controls Writer.Write.
type WriteOptions struct {
	// Verify, if true, performs the optional post-write verification of
	// §4.F: a full clone read followed by validate.Compare, folding any
	// discrepancy into Report.Warnings rather than failing the write.
	Verify bool
}

// Report summarizes a completed write.
type Report struct {
	BlocksWritten int
	Warnings      []string
}

// Writer performs a bulk CloneWrite over a Plan: it transfers the packed
// image as CloneWrite blocks, validates CRC, deploys, and exits programming
// mode. No separate framing record is sent before the first block.
type Writer struct {
	d    *xcmp.Dispatcher
	ctrl *program.Controller
	log  *logger.Logger
	hub  Publisher
}

// NewWriter binds a Writer to an already-initialized Dispatcher and the
// Controller that unlocked it (needed for ExitProgramMode on completion).
func NewWriter(d *xcmp.Dispatcher, ctrl *program.Controller, hub Publisher, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Writer{d: d, ctrl: ctrl, hub: hub, log: log.WithComponent("clone.writer")}
}

// Write packs cp using models, transfers it to the radio per plan's
// addressing, and commits it. The exit-programming-mode step runs
// regardless of whether the transfer itself succeeded, matching §5's
// "cancel() ... issues program-mode exit (best effort)" cancellation rule
// generalized to the write path's own failure cases.
func (w *Writer) Write(ctx context.Context, models codeplug.ModelSet, cp codeplug.Codeplug, plan Plan, opts WriteOptions, progress ProgressFunc) (Report, error) {
	var report Report

	w.report(progress, 0.0, "starting")

	raw, err := codeplug.Encode(models, cp)
	if err != nil {
		return report, fmt.Errorf("clone: encode codeplug for write: %w", err)
	}

	image := packImage(raw, plan)

	writeErr := w.transferBlocks(ctx, image, &report, progress)
	if writeErr == nil {
		writeErr = w.validateAndDeploy(ctx, progress)
	}

	if exitErr := w.ctrl.ExitProgramMode(); exitErr != nil {
		w.log.Warn("exit program mode after write failed", logger.Error(exitErr))
	}

	if writeErr != nil {
		return report, writeErr
	}

	if opts.Verify {
		w.verify(ctx, models, cp, plan, &report)
	}

	return report, nil
}

func packImage(raw *codeplug.RawCodeplug, plan Plan) []byte {
	var image []byte
	for _, key := range plan {
		if data, ok := raw.Get(key); ok {
			image = append(image, data...)
		}
	}
	return image
}

func (w *Writer) transferBlocks(ctx context.Context, image []byte, report *Report, progress ProgressFunc) error {
	total := (len(image) + writeBlockSize - 1) / writeBlockSize
	if total == 0 {
		total = 1
	}

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("clone: write cancelled at block %d/%d: %w", i, total, ctx.Err())
		default:
		}

		start := i * writeBlockSize
		if start >= len(image) {
			break
		}
		end := start + writeBlockSize
		if end > len(image) {
			end = len(image)
		}

		req := xcmp.CloneWriteRequest{BlockIndex: uint16(i), Data: image[start:end]}
		body, err := w.d.Request(xcmp.OpCloneWrite, req.Encode())
		if err != nil {
			return fmt.Errorf("clone: write block %d: %w", i, err)
		}
		reply, err := xcmp.ParseCloneWriteReply(body)
		if err != nil {
			return fmt.Errorf("clone: parse write reply for block %d: %w", i, err)
		}
		if reply.ErrorCode != xcmp.ErrOK {
			return fmt.Errorf("clone: device error 0x%02X writing block %d", reply.ErrorCode, i)
		}

		report.BlocksWritten++
		w.report(progress, float64(i+1)/float64(total), "writing")
	}
	return nil
}

func (w *Writer) validateAndDeploy(ctx context.Context, progress ProgressFunc) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	crcBody, err := w.d.Request(xcmp.OpCRCValidate, xcmp.CRCValidateRequest{}.Encode())
	if err != nil {
		return fmt.Errorf("clone: CRC validate: %w", err)
	}
	crcReply, err := xcmp.ParseCRCValidateReply(crcBody)
	if err != nil {
		return fmt.Errorf("clone: parse CRC validate reply: %w", err)
	}
	if crcReply.ErrorCode != xcmp.ErrOK {
		return fmt.Errorf("clone: CRC validation failed with device error 0x%02X", crcReply.ErrorCode)
	}
	w.log.Info("clone write: validating CRC")
	w.report(progress, 1.0, "validating CRC")

	deployBody, err := w.d.Request(xcmp.OpDeploy, xcmp.DeployRequest{}.Encode())
	if err != nil {
		return fmt.Errorf("clone: deploy: %w", err)
	}
	deployReply, err := xcmp.ParseDeployReply(deployBody)
	if err != nil {
		return fmt.Errorf("clone: parse deploy reply: %w", err)
	}
	if deployReply.ErrorCode != xcmp.ErrOK {
		return fmt.Errorf("clone: deploy failed with device error 0x%02X", deployReply.ErrorCode)
	}
	w.log.Info("clone write: deploying")
	w.report(progress, 1.0, "deploying")
	return nil
}

func (w *Writer) verify(ctx context.Context, models codeplug.ModelSet, original codeplug.Codeplug, plan Plan, report *Report) {
	reader := NewReader(w.d, w.hub, w.log)
	rawReadBack, err := reader.Read(ctx, plan, nil)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("post-write verification read failed: %v", err))
		return
	}
	readBack, err := codeplug.Decode(models, rawReadBack)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("post-write verification decode failed: %v", err))
		return
	}
	cmp := validate.Compare(original, readBack)
	for _, d := range cmp.Discrepancies {
		report.Warnings = append(report.Warnings, d.String())
	}
}

func (w *Writer) report(progress ProgressFunc, fraction float64, phase string) {
	p := Progress{Fraction: fraction, Phase: phase}
	if progress != nil {
		progress(p)
	}
	publish(w.hub, p)
}
