package nexus

import "errors"

// Registration errors returned by RegisterReqFunc. These are the recoverable
// class: the caller decides what to do. Usage-contract violations (double
// hook registration, destruction with live hooks) are programmer bugs and
// panic instead.
var (
	// ErrRegistrationClosed: an endpoint has already registered a hook, so
	// the request-handler table is frozen.
	ErrRegistrationClosed = errors.New("request handler registration closed")

	// ErrReqTypeOccupied: a handler is already installed for this type.
	ErrReqTypeOccupied = errors.New("request type already has a handler")

	// ErrInvalidHandler: the handler function is nil.
	ErrInvalidHandler = errors.New("invalid request handler")

	// ErrTooManyBgThreads: the requested worker count exceeds MaxBgThreads.
	ErrTooManyBgThreads = errors.New("background thread count exceeds limit")
)
