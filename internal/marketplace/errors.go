package marketplace

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrUnauthorized      = errors.New("not allowed")
	ErrConflict          = errors.New("order was changed by someone else, reload and try again")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// errTaken is returned to a provider trying to pick up an order another
// provider already won. It is both a lost race and a dead transition.
var errTaken = fmt.Errorf("order already taken by another provider: %w: %w", ErrConflict, ErrInvalidTransition)
