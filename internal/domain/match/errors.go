package match

import "errors"

// ErrInvalidLimit is returned when a query asks for fewer than one result.
var ErrInvalidLimit = errors.New("limit must be a positive integer")
