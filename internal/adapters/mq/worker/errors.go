package worker

import "errors"

var (
	// ErrSkipped marks a job the processor chose not to harvest. Wrap it
	// with the reason.
	ErrSkipped = errors.New("job skipped")
)
