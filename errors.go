package reconcile

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrContractViolation indicates the authoritative payload handed to
	// Finish does not have the expected shape. It points at a defect in the
	// upstream producer, not at a transient streaming condition.
	ErrContractViolation = errors.New("contract violation")

	// ErrSessionFinished indicates Finish was called on a terminal session.
	ErrSessionFinished = errors.New("session already finished")

	// ErrSessionNotStarted indicates an operation on a session that was never
	// started by a Controller.
	ErrSessionNotStarted = errors.New("session not started")

	// ErrValidation indicates a schema or configuration value is invalid.
	ErrValidation = errors.New("validation error")
)
