package kstream

import (
	"errors"

	"github.com/tryfix/estream/kstream/processors"
)

var (
	// ErrNotFound is returned for unknown streams, branches and stores, and
	// for stores of another type than requested.
	ErrNotFound = errors.New(`not found`)
	// ErrInvalidState is returned when a StreamInstance call does not fit its
	// lifecycle, e.g. Emit before Start.
	ErrInvalidState = errors.New(`invalid state`)
	ErrInvalidInput = processors.ErrInvalidInput
)
