package device

import "errors"

// ErrIDMismatch indicates an attribute snapshot was applied under the
// wrong device ID. This is a caller bug, not a recoverable condition.
var ErrIDMismatch = errors.New("device: id mismatch")
