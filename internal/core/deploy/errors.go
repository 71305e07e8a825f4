package deploy

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned when the engine runs before wording data is loaded.
var ErrNotLoaded = errors.New("no wording data loaded")

// ErrInvalidTransition is returned by Flow for a step the current stage does not allow.
var ErrInvalidTransition = errors.New("invalid flow transition")

// OrchestrationError reports a failure of a whole multi-page run, as opposed
// to the per-page failures that are absorbed into the results.
type OrchestrationError struct {
	Op  string // "scan" or "deploy"
	Err error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("multi-page %s failed: %v", e.Op, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }
