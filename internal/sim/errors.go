package sim

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBody = errors.New("sim: unknown body")
	ErrNoOwner     = errors.New("sim: disk particle owner is not a black hole")
	ErrInvalidDt   = errors.New("sim: dt must be positive")
	ErrClosed      = errors.New("sim: world closed")
)

// StepError reports a tick that left the world in an unusable state.
type StepError struct {
	Step    uint64
	Time    float64
	Message string
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
