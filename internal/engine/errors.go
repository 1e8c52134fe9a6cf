package engine

// errInvalidParams signals out-of-range sampling parameters, caught before
// admission (400 mapping in the HTTP layer).
type errInvalidParams struct {
	field  string
	reason string
}

func (e errInvalidParams) Error() string {
	return "invalid sampling params: " + e.field + " " + e.reason
}

// IsInvalidSamplingParams reports whether err came from parameter validation.
func IsInvalidSamplingParams(err error) bool {
	_, ok := err.(errInvalidParams)
	return ok
}

// decodingFailureError signals a forward-pass numerical failure. It is
// reported, not retried: identical inputs on a deterministic device
// reproduce the same failure.
type decodingFailureError struct{ msg string }

func (e decodingFailureError) Error() string { return "decoding failure: " + e.msg }

// ErrDecoding constructs a decoding failure.
func ErrDecoding(msg string) error { return decodingFailureError{msg: msg} }

// IsDecodingFailure reports whether err aborted a decode loop.
func IsDecodingFailure(err error) bool {
	_, ok := err.(decodingFailureError)
	return ok
}
