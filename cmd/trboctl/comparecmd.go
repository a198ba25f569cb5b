package main

import (
	"fmt"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/validate"
)

// cmdCompare diffs two JSON codeplugs field by field: trboctl compare
// original.json readback.json
func cmdCompare(env *commandEnv) error {
	if len(env.args) != 2 {
		return fmt.Errorf("usage: trboctl compare <original.json> <readback.json>")
	}

	started := time.Now()
	env.collector.OperationStarted("compare", "validate")

	original, err := readCodeplugFile(env.args[0])
	if err != nil {
		env.collector.OperationFinished("compare", false)
		return err
	}
	readBack, err := readCodeplugFile(env.args[1])
	if err != nil {
		env.collector.OperationFinished("compare", false)
		return err
	}

	result := validate.Compare(original, readBack)
	for _, d := range result.Discrepancies {
		fmt.Println(d.String())
	}

	env.collector.OperationFinished("compare", result.Passed())
	recordOperation(env, "compare", original.RadioID, started, result.Passed(), fmt.Sprintf("%d discrepancy(s)", len(result.Discrepancies)))

	if !result.Passed() {
		return fmt.Errorf("compare found %d discrepancy(s)", len(result.Discrepancies))
	}
	fmt.Println("ok: no discrepancies")
	return nil
}
