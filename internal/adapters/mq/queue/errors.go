package queue

import "errors"

var (
	// ErrClosed is returned by EnqueueWait once the queue is closed.
	ErrClosed = errors.New("queue closed")
)
