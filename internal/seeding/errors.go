package seeding

import "errors"

// Error constants.
var (
	ErrInvalidConfig    = errors.New("invalid seeding config")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrThrottled        = errors.New("records throttled by the service")
	ErrNotSettled       = errors.New("service did not settle")
	ErrVerification     = errors.New("verification failed")
)
