package kafka

// PermanentError marks a handler failure that a redelivery cannot fix, such
// as a malformed event. The consumer drops the message instead of retrying.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer treats it as not retryable.
func Permanent(err error) error {
	return PermanentError{Err: err}
}
