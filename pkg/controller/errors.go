package controller

import "errors"

// Controller package errors.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("controller: already started")

	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("controller: closed")

	// ErrNotStarted is returned when an operation needs a running
	// controller.
	ErrNotStarted = errors.New("controller: not started")

	// ErrEmptyTarget is returned when SendMessage gets no target.
	ErrEmptyTarget = errors.New("controller: empty target unit id")
)
