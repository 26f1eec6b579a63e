package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden access")
	ErrNotFound        = errors.New("not found")
	ErrOutOfStock      = errors.New("book is out of stock")
	ErrAlreadyBorrowed = errors.New("book already borrowed by this user")
	ErrValidation      = errors.New("invalid input")
	ErrStorage         = errors.New("storage unavailable")
)

// Validationf builds an ErrValidation with a field specific message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsDomain reports whether err belongs to the request-level taxonomy, as
// opposed to an infrastructure failure.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrUnauthenticated,
		ErrForbidden,
		ErrNotFound,
		ErrOutOfStock,
		ErrAlreadyBorrowed,
		ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Kind returns the machine readable name of err used in API responses.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrAlreadyBorrowed):
		return "already_borrowed"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	default:
		return "storage_error"
	}
}
