package output

import "errors"

var (
	// ErrInvalidSink is returned when a sink is constructed without a target.
	ErrInvalidSink = errors.New("output: invalid sink configuration")
)
