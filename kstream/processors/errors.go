package processors

import "errors"

// ErrInvalidInput is returned when an operator receives a record it cannot
// transform, such as a nil value reaching Map or MapValues.
var ErrInvalidInput = errors.New(`invalid input`)
