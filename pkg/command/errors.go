package command

import (
	"errors"
	"fmt"
)

// Command package errors.
var (
	// ErrValueCheck is returned when a command value falls outside the
	// target device's configured trait ranges. A failed check drops the
	// enclosing message unless the command is forced.
	ErrValueCheck = errors.New("command: value check failed")

	// ErrInvalidAction is returned for routine or vacuum actions the
	// protocol does not define.
	ErrInvalidAction = errors.New("command: invalid action")
)

// wrapCheck builds an ErrValueCheck with detail, so callers can test
// with errors.Is and still log the offending value.
func wrapCheck(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValueCheck, fmt.Sprintf(format, args...))
}
