package model

import "fmt"

// modelLoadError signals missing or corrupt weights.
type modelLoadError struct {
	path  string
	cause error
}

func (e modelLoadError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("model load failure: %s: %v", e.path, e.cause)
	}
	return "model load failure: " + e.path
}

func (e modelLoadError) Unwrap() error { return e.cause }

// ErrModelLoad constructs a model load failure for the given weight source.
func ErrModelLoad(path string, cause error) error {
	return modelLoadError{path: path, cause: cause}
}

// IsModelLoad reports whether err indicates missing or corrupt weights.
func IsModelLoad(err error) bool {
	_, ok := err.(modelLoadError)
	return ok
}

// adapterFamilyMismatchError signals an adapter bound to an incompatible base.
type adapterFamilyMismatchError struct {
	base    Family
	adapter Family
}

func (e adapterFamilyMismatchError) Error() string {
	return fmt.Sprintf("adapter family mismatch: adapter is %s, base model is %s", e.adapter, e.base)
}

// IsAdapterFamilyMismatch reports whether err came from the family check.
func IsAdapterFamilyMismatch(err error) bool {
	_, ok := err.(adapterFamilyMismatchError)
	return ok
}

// deviceOOMError is surfaced from the backend, never retried.
type deviceOOMError struct{ msg string }

func (e deviceOOMError) Error() string { return "device out of memory: " + e.msg }

// ErrDeviceOutOfMemory constructs a device memory exhaustion error.
func ErrDeviceOutOfMemory(msg string) error { return deviceOOMError{msg: msg} }

// IsDeviceOutOfMemory reports whether err indicates device memory exhaustion.
func IsDeviceOutOfMemory(err error) bool {
	_, ok := err.(deviceOOMError)
	return ok
}
