package engine

import "errors"

var (
	// ErrClosed is returned once a controller has been torn down.
	ErrClosed = errors.New("controller closed")

	// ErrAlreadyRunning is returned by a second concurrent Run call.
	ErrAlreadyRunning = errors.New("controller already running")
)

// IsClosed reports whether err means the controller is gone.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
