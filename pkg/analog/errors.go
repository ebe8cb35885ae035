package analog

import "errors"

var (
	// ErrInvalidChannel indicates the light index is out of range.
	ErrInvalidChannel = errors.New("invalid light channel")
)
