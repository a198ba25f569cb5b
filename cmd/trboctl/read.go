package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/n5dmr/trbo-xnl/pkg/clone"
	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
)

// cmdRead clone-reads a codeplug from a radio and writes it to a JSON file.
// The zone/channel layout to read is supplied via -zones/-channels-per-zone,
// since no XCMP query in this protocol reports codeplug size up front.
func cmdRead(env *commandEnv) error {
	if env.outFile == "" {
		return fmt.Errorf("-out is required")
	}

	started := time.Now()
	const opID = "read"
	env.collector.OperationStarted(opID, "read")

	dev, err := connectAndUnlock(env, xcmp.PartitionCodeplug)
	if err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "read", 0, started, false, err.Error())
		return err
	}
	defer dev.close(env.log)

	channelsPerZone := make([]int, env.zones)
	for i := range channelsPerZone {
		channelsPerZone[i] = env.channels
	}
	plan := clone.BuildPlan(env.zones, channelsPerZone, env.contacts)

	reader := clone.NewReader(dev.disp, progressPublisher(env), env.log)
	progress := func(p clone.Progress) {
		env.log.Info("read progress", logger.String("phase", p.Phase), logger.Float64("fraction", p.Fraction))
	}

	raw, err := reader.Read(env.ctx, plan, progress)
	if err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "read", 0, started, false, err.Error())
		return fmt.Errorf("clone read: %w", err)
	}

	var totalBytes int
	for _, data := range raw.Records {
		totalBytes += len(data)
		env.collector.BlockTransferred(uint64(len(data)))
	}

	cp, err := codeplug.Decode(codeplug.GenericModelSet, raw)
	if err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "read", 0, started, false, err.Error())
		return fmt.Errorf("decode codeplug: %w", err)
	}

	out, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal codeplug: %w", err)
	}
	if err := os.WriteFile(env.outFile, out, 0o644); err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "read", cp.RadioID, started, false, err.Error())
		return fmt.Errorf("write output file: %w", err)
	}

	env.collector.OperationFinished(opID, true)
	recordOperation(env, "read", cp.RadioID, started, true, fmt.Sprintf("%d zones, %s read", len(cp.Zones), humanize.Bytes(uint64(totalBytes))))

	fmt.Printf("read %d zones (%s) to %s\n", len(cp.Zones), humanize.Bytes(uint64(totalBytes)), env.outFile)
	return nil
}
