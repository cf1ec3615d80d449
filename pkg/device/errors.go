package device

import "errors"

// Device package errors.
var (
	// ErrLockTimeout is returned when the per-device use-lock could not
	// be acquired within the timeout.
	ErrLockTimeout = errors.New("device: use-lock acquisition timed out")

	// ErrNoUnitID is returned when an identity frame carries no unit id.
	ErrNoUnitID = errors.New("device: identity without unit id")

	// ErrNotFound is returned when a unit-id lookup misses.
	ErrNotFound = errors.New("device: not found")

	// ErrStatusType is returned when a status payload's type does not
	// match the device kind.
	ErrStatusType = errors.New("device: status payload type mismatch")
)
