package domain

import "errors"

var (
	ErrCorruptLog     = errors.New("stored log is corrupt")
	ErrInvalidRequest = errors.New("invalid request")
	ErrHubFull        = errors.New("connection limit reached")
	ErrHubStopped     = errors.New("hub stopped")
)
