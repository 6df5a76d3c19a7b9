package domain

import "errors"

// Domain errors represent error conditions in the asdustat domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("asdustat: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("asdustat: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("asdustat: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("asdustat: invalid configuration")

	// ErrInvalidCommand is returned when a command request cannot be translated.
	ErrInvalidCommand = errors.New("asdustat: invalid command")

	// ErrNotConnected is returned when a send is attempted without an active session.
	ErrNotConnected = errors.New("asdustat: not connected")

	// ErrCategoryOutOfRange is returned when an ASDU category is outside the table bounds.
	ErrCategoryOutOfRange = errors.New("asdustat: category out of range")
)
