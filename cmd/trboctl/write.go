package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/clone"
	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/validate"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
)

// cmdWrite validates a JSON codeplug and clone-writes it to a radio,
// refusing to proceed if validation reports any error-severity issue.
func cmdWrite(env *commandEnv) error {
	if env.inFile == "" {
		return fmt.Errorf("-in is required")
	}

	started := time.Now()
	const opID = "write"
	env.collector.OperationStarted(opID, "write")

	cp, err := readCodeplugFile(env.inFile)
	if err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "write", 0, started, false, err.Error())
		return err
	}

	result := validate.Validate(cp)
	for _, issue := range result.Issues {
		env.log.Warn(issue.String())
	}
	if !result.Passed() {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "write", cp.RadioID, started, false, "validation failed")
		return fmt.Errorf("codeplug failed validation, refusing to write (%d issue(s))", len(result.Issues))
	}

	dev, err := connectAndUnlock(env, xcmp.PartitionCodeplug)
	if err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "write", cp.RadioID, started, false, err.Error())
		return err
	}
	defer dev.close(env.log)

	channelsPerZone := make([]int, len(cp.Zones))
	for i, z := range cp.Zones {
		channelsPerZone[i] = len(z.Channels)
	}
	plan := clone.BuildPlan(len(cp.Zones), channelsPerZone, len(cp.Contacts))

	writer := clone.NewWriter(dev.disp, dev.ctrl, progressPublisher(env), env.log)
	progress := func(p clone.Progress) {
		env.log.Info("write progress", logger.String("phase", p.Phase), logger.Float64("fraction", p.Fraction))
	}

	report, err := writer.Write(env.ctx, codeplug.GenericModelSet, cp, plan, clone.WriteOptions{Verify: env.verify}, progress)
	if err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "write", cp.RadioID, started, false, err.Error())
		return fmt.Errorf("clone write: %w", err)
	}
	for i := 0; i < report.BlocksWritten; i++ {
		env.collector.BlockTransferred(0)
	}

	for _, w := range report.Warnings {
		env.log.Warn(w)
	}

	env.collector.OperationFinished(opID, true)
	recordOperation(env, "write", cp.RadioID, started, true, fmt.Sprintf("%d blocks, %d warning(s)", report.BlocksWritten, len(report.Warnings)))

	fmt.Printf("wrote %d blocks, %d warning(s)\n", report.BlocksWritten, len(report.Warnings))
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}

func readCodeplugFile(path string) (codeplug.Codeplug, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return codeplug.Codeplug{}, fmt.Errorf("read %s: %w", path, err)
	}
	var cp codeplug.Codeplug
	if err := json.Unmarshal(data, &cp); err != nil {
		return codeplug.Codeplug{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cp, nil
}
