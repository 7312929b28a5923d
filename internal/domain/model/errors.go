package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord marks a record that violates a data-model invariant.
var ErrInvalidRecord = errors.New("invalid record")

type violations []string

func (v *violations) require(ok bool, msg string) {
	if !ok {
		*v = append(*v, msg)
	}
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(v, "; "))
}
