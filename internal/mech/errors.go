package mech

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigDim reports a configuration vector whose length disagrees
	// with the system.
	ErrConfigDim = errors.New("mech: configuration dimension mismatch")

	// ErrBuild reports a malformed system description.
	ErrBuild = errors.New("mech: invalid system description")

	// ErrSingularConstraint reports a constraint Jacobian without full row
	// rank at the current configuration.
	ErrSingularConstraint = errors.New("mech: singular constraint jacobian")

	// ErrIllConditioned reports a Newton system too poorly conditioned to
	// solve reliably.
	ErrIllConditioned = errors.New("mech: ill-conditioned system")

	// ErrDivergence reports a Newton iteration that failed to converge
	// within its iteration cap.
	ErrDivergence = errors.New("mech: integration diverged")

	// ErrFrozen reports a mutation attempted after simulation began.
	ErrFrozen = errors.New("mech: system is frozen")

	// ErrUnknownName reports a frame, variable, or input name that does
	// not exist in the system.
	ErrUnknownName = errors.New("mech: unknown name")

	// ErrInvalidStep reports a non-positive timestep.
	ErrInvalidStep = errors.New("mech: timestep must be positive")
)

// BuildError wraps ErrBuild with the offending detail.
type BuildError struct {
	Detail string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mech: build: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("mech: build: %s", e.Detail)
}

func (e *BuildError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrBuild
}

// Is lets BuildError match ErrBuild even when wrapping a more specific cause.
func (e *BuildError) Is(target error) bool { return target == ErrBuild }

func buildErrf(format string, args ...any) error {
	return &BuildError{Detail: fmt.Sprintf(format, args...)}
}

// StepError carries the context of a failed integration step.
type StepError struct {
	T        float64 // start time of the failed step
	Iter     int     // Newton iterations performed
	Residual float64 // residual norm at failure
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("mech: step at t=%g failed after %d iterations (residual %.3e): %v",
		e.T, e.Iter, e.Residual, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
