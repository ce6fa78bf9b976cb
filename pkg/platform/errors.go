package platform

import "errors"

// Sentinel errors for platform operations.
var (
	// ErrClosed is returned when operating on a closed channel or session.
	ErrClosed = errors.New("platform: channel closed")

	// ErrUnexpectedResponse is returned when native code answers with a payload of the wrong shape.
	ErrUnexpectedResponse = errors.New("platform: unexpected response")
)
