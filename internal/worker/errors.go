package worker

import "errors"

var (
	// ErrPoolClosed is returned by Submit once the pool has shut down.
	ErrPoolClosed = errors.New("task pool closed")

	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("task queue full")
)
