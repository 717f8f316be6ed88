package executor

import "errors"

// permanentError excludes a step failure from retry regardless of the
// step's retry policy.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the control loop fails the step immediately instead
// of consuming remaining retry attempts. Used for fatal result codes and
// contract violations, where repeating the attempt cannot change the outcome.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError

	return errors.As(err, &pe)
}
