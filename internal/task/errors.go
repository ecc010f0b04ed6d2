package task

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource is a configuration error: the task has no source URL or
	// no file name could be derived from it.
	ErrInvalidSource = errors.New("task: source url or file name is empty")

	// ErrUnknownSize is returned when the probe reports no usable length: a
	// 200 without Content-Length, or any other success code while the size
	// was never preset.
	ErrUnknownSize = errors.New("task: server did not report a content length")

	// ErrInvalidRange is returned when a computed chunk range is empty.
	ErrInvalidRange = errors.New("task: empty chunk range")

	// ErrRangeMismatch is returned when a partial response does not start at
	// the requested offset.
	ErrRangeMismatch = errors.New("task: response range does not match request")

	errStopped   = errors.New("task: stopped")
	errEmptyBody = errors.New("empty response body")
)

// StatusError is a protocol error: the server answered outside 200-399.
// It is never retried.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("task: %s: unexpected status code %d", e.Op, e.Code)
}

// TransportError means no usable response was received. It is the only
// error the retry policy applies to.
type TransportError struct {
	Op string
	// Code is the status of a response that arrived but was unusable, or 0.
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("task: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StorageError is a local file-system failure. It is never retried.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("task: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
