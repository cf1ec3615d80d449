package discovery

import "errors"

// Discovery package errors.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrClosed is returned when the service was stopped.
	ErrClosed = errors.New("discovery: closed")
)
