package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every constructor or mutation that rejects its input.
	ErrValidation = errors.New("validation error")
	// ErrUnknownType is returned when a persisted vehicle carries a type tag with no registered factory.
	ErrUnknownType = errors.New("unknown vehicle type")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
