package jobcard

import (
	"errors"
	"fmt"
)

var (
	ErrNoJobCard         = errors.New("jobcard: no current job card")
	ErrInvalidTransition = errors.New("jobcard: invalid transition")
	ErrUnknownStatus     = errors.New("jobcard: unknown status")
	ErrUnknownActor      = errors.New("jobcard: unknown actor")
	ErrInvalidConfidence = errors.New("jobcard: confidence must be within [0,1]")
	ErrEmptyAction       = errors.New("jobcard: audit action is empty")
	ErrInvalidEvidence   = errors.New("jobcard: invalid PDI evidence")
)

// TransitionError reports a refused status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("jobcard: cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
