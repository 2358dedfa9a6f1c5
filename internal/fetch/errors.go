package fetch

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by producers when the resource does not exist
var ErrNotFound = errors.New("resource not found")

// TransientError is a failed external call. It is never cached.
type TransientError struct {
	Key Key
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
