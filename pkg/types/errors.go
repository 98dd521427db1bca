package types

import "errors"

// Stream codec errors
var (
	// ErrShortRecord is returned when an encoded event stream ends in the middle of a record
	ErrShortRecord = errors.New("truncated event record")

	// ErrBadStreamHeader is returned when an event stream does not start with the expected magic
	ErrBadStreamHeader = errors.New("invalid event stream header")
)
