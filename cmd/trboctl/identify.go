package main

import (
	"fmt"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
)

// cmdIdentify connects to a radio, runs the unlock sequence (which
// necessarily queries identity along the way per §4.E), and prints the
// result. It always exits program mode before returning.
func cmdIdentify(env *commandEnv) error {
	started := time.Now()
	const opID = "identify"
	env.collector.OperationStarted(opID, "identify")

	dev, err := connectAndUnlock(env, xcmp.PartitionCodeplug)
	if err != nil {
		env.collector.OperationFinished(opID, false)
		recordOperation(env, "identify", 0, started, false, err.Error())
		return err
	}
	defer dev.close(env.log)

	env.collector.OperationFinished(opID, true)
	recordOperation(env, "identify", 0, started, true, dev.info.Model)

	fmt.Printf("model:        %s\n", dev.info.Model)
	fmt.Printf("model number: %s\n", dev.info.ModelNumber)
	fmt.Printf("type:         %s\n", dev.info.Type)
	fmt.Printf("serial:       %s\n", dev.info.Serial)
	fmt.Printf("firmware:     %s\n", dev.info.Firmware)
	env.log.Info("identify complete", logger.String("model", dev.info.Model), logger.String("serial", dev.info.Serial))
	return nil
}
