package site

import (
	"errors"
	"fmt"
)

// Permanent marks a site failure as terminal: retrying cannot help
// (bad credentials, class full, already booked). Unmarked failures are
// treated as transient and fed to the retry policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err is wrapped with Permanent.
func IsPermanent(err error) bool {
	var e permanentError
	return errors.As(err, &e)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }
func (e permanentError) Unwrap() error { return e.err }

var (
	// ErrInvalidCredentials is returned by Login when the site rejects the
	// credentials (as opposed to the login call failing to complete).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrClassFull is returned by Book when no seats remain.
	ErrClassFull = errors.New("class full")

	// ErrAlreadyBooked is returned by Book when the user already holds a spot.
	ErrAlreadyBooked = errors.New("already booked")
)
