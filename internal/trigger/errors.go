package trigger

import "errors"

var (
	// ErrInvalidMode is returned by New for an unknown trigger mode.
	ErrInvalidMode = errors.New("trigger: invalid mode")

	// ErrFireFailed is returned when a trigger attempt fails.
	// The wrapped error carries the backend-specific cause.
	ErrFireFailed = errors.New("trigger: fire failed")

	// ErrAckTimeout is returned by the mqtt backend when the machine does
	// not acknowledge the command within the trigger timeout.
	ErrAckTimeout = errors.New("trigger: machine did not acknowledge in time")
)
