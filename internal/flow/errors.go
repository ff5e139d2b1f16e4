package flow

import "errors"

var (
	// ErrClosed is returned by Subscription.Next after Close.
	ErrClosed = errors.New("flow: subscription closed")

	// ErrInvalidConfig is wrapped by constructor validation errors.
	ErrInvalidConfig = errors.New("flow: invalid config")
)
