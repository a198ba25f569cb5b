package main

import (
	"fmt"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/validate"
)

// cmdValidate runs the pre-write sanity checks against a JSON codeplug
// file without connecting to any radio.
func cmdValidate(env *commandEnv) error {
	if env.inFile == "" {
		return fmt.Errorf("-in is required")
	}

	started := time.Now()
	env.collector.OperationStarted("validate", "validate")

	cp, err := readCodeplugFile(env.inFile)
	if err != nil {
		env.collector.OperationFinished("validate", false)
		recordOperation(env, "validate", 0, started, false, err.Error())
		return err
	}

	result := validate.Validate(cp)
	for _, issue := range result.Issues {
		fmt.Println(issue.String())
	}

	env.collector.OperationFinished("validate", result.Passed())
	recordOperation(env, "validate", cp.RadioID, started, result.Passed(), fmt.Sprintf("%d issue(s)", len(result.Issues)))

	if !result.Passed() {
		return fmt.Errorf("validation failed: %d issue(s)", len(result.Issues))
	}
	fmt.Printf("ok: %d issue(s), none fatal\n", len(result.Issues))
	return nil
}
