package repository

import "errors"

// Sentinel errors shared by the backends.
var (
	ErrClosed      = errors.New("store closed")
	ErrUnavailable = errors.New("store unavailable")
)
