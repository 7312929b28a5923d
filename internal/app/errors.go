package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted = errors.New("service not started")
	ErrEmptyBatch = errors.New("batch contains no records")
)
