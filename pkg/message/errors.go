package message

import "errors"

// Message package errors.
var (
	// ErrNoCommands is returned when a message is created without
	// commands. The commands list is never empty.
	ErrNoCommands = errors.New("message: no commands")

	// ErrAnswerNotJSON is returned when an answer payload fails JSON
	// decoding.
	ErrAnswerNotJSON = errors.New("message: answer is not valid JSON")

	// ErrSweeperStarted is returned when Start is called twice.
	ErrSweeperStarted = errors.New("message: sweeper already started")

	// ErrSweeperClosed is returned when the sweeper was stopped.
	ErrSweeperClosed = errors.New("message: sweeper closed")
)
