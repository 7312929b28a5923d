package queue

import "errors"

// ErrFull is reported when a job is rejected for backpressure.
var ErrFull = errors.New("queue full")
