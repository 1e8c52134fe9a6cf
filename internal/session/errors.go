package session

// queueFullError signals a synchronous admission rejection (429 mapping).
type queueFullError struct{ depth int }

func (e queueFullError) Error() string {
	return "queue full: depth limit reached"
}

// ErrQueueFull constructs an admission rejection for the given depth limit.
func ErrQueueFull(depth int) error { return queueFullError{depth: depth} }

// IsQueueFull reports whether err indicates admission backpressure.
func IsQueueFull(err error) bool {
	_, ok := err.(queueFullError)
	return ok
}

// notFoundError signals an unknown session id.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "session not found: " + e.id }

// IsNotFound reports whether err indicates an unknown session id.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}
