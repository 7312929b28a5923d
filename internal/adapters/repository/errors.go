package repository

import "errors"

// Sentinel errors returned by stores.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrInvalidKey   = errors.New("record key must not be empty")
	ErrClosed       = errors.New("store closed")
)
