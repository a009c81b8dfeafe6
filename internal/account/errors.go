package account

import "errors"

var (
	// ErrBusy indicates a command is already pending for the device. No
	// network call is made; the caller retries after the pending command
	// resolves.
	ErrBusy = errors.New("account: command already pending for device")

	// ErrCommandRejected indicates the cloud explicitly declined the
	// command. Terminal; never retried automatically.
	ErrCommandRejected = errors.New("account: command rejected")

	// ErrCommandTimeout indicates the confirmation window elapsed before
	// a poll cycle observed the command's execution. Terminal.
	ErrCommandTimeout = errors.New("account: command confirmation timed out")

	// ErrUnknownDevice indicates the device ID has never been seen by a
	// full refresh.
	ErrUnknownDevice = errors.New("account: unknown device")
)
