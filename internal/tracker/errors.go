package tracker

import "errors"

// Domain failures. Their messages are the exact texts returned to clients.
var (
	ErrMissingRequiredField = errors.New("required field(s) missing")
	ErrMissingID            = errors.New("missing _id")
	ErrNoUpdateFields       = errors.New("no update field(s) sent")
	ErrUpdateNotFound       = errors.New("could not update")
	ErrDeleteNotFound       = errors.New("could not delete")
)

// ErrStoreUnavailable wraps any store failure that is not a missing document.
var ErrStoreUnavailable = errors.New("store unavailable")

// IDError is a domain failure about a specific issue id.
type IDError struct {
	ID  string
	Err error
}

func (e *IDError) Error() string { return e.Err.Error() }
func (e *IDError) Unwrap() error { return e.Err }

func idError(id string, err error) error {
	return &IDError{ID: id, Err: err}
}

// IsDomainError reports whether err is a caller-input or not-found condition,
// as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrMissingRequiredField,
		ErrMissingID,
		ErrNoUpdateFields,
		ErrUpdateNotFound,
		ErrDeleteNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorID returns the issue id carried by err, if any.
func ErrorID(err error) (string, bool) {
	var idErr *IDError
	if errors.As(err, &idErr) {
		return idErr.ID, true
	}
	return "", false
}
