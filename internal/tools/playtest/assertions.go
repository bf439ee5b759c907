package playtest

import (
	"fmt"
	"log"
)

// AssertionMode controls whether failed expectations stop a run.
type AssertionMode int

const (
	// AssertionStrict fails the run on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and continues.
	AssertionLogOnly
)

// Assertions reports unmet expectations according to Mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
	failed int
}

// Failf always fails: the script itself is broken.
func (a *Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports an unmet expectation.
func (a *Assertions) Assertf(format string, args ...any) error {
	a.failed++
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("expectation: "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}

// Failed counts unmet expectations so far.
func (a *Assertions) Failed() int {
	return a.failed
}
