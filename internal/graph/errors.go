package graph

import (
	"errors"
	"fmt"
)

// ErrNoDecision marks a run that ended without a decision.
var ErrNoDecision = errors.New("no decision produced")

// StageError is a fatal failure inside one pipeline stage.
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

func (e *StageError) Is(target error) bool {
	return target == ErrNoDecision
}

// ProtocolError signals an internal ordering or invariant breach.
type ProtocolError struct {
	Stage  string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation in %s: %s", e.Stage, e.Detail)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrNoDecision
}

// FailedStage extracts the stage name from a run error, if any.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
