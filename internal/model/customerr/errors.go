package customerr

import "github.com/pkg/errors"

// ConnectionError means the store is unreachable or the session died.
// It is recovered by re-acquiring on the next call, never retried in place.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ValidationError means the command arguments are malformed. It never
// reaches the store and is shown to the user as a usage hint.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// StoreError means a well-formed operation was rejected by the store.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return "store error: " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
