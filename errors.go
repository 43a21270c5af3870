//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"errors"
	"io/fs"
	"os"
)

// ErrorKind classifies the errors produced by this package.
//
// The list is intended to grow over time, so callers should not match it
// exhaustively: branch on the kinds they care about and treat the rest
// generically.
type ErrorKind int

const (
	// NoDevice means the device is absent: it never existed, is in use by
	// another process, or was disconnected while performing I/O.
	NoDevice ErrorKind = iota

	// InvalidInput means the request cannot be represented on this
	// platform at all, e.g. an unsupported stop bit count.
	InvalidInput

	// Unknown covers platform and capability gaps, e.g. enumeration not
	// being implemented for the current operating system.
	Unknown

	// IoError wraps any other I/O failure; the native error is available
	// through errors.Unwrap / errors.As.
	IoError
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case NoDevice:
		return "no device"
	case InvalidInput:
		return "invalid input"
	case Unknown:
		return "unknown error"
	case IoError:
		return "I/O error"
	default:
		return "other error"
	}
}

// PortError is the error type for serial port operations. It pairs a
// programmatic kind with a human-readable description suitable for display,
// and keeps the native error (if any) reachable through errors.Unwrap.
type PortError struct {
	kind        ErrorKind
	description string
	cause       error
}

// NewPortError builds an error of the given kind with a display description.
func NewPortError(kind ErrorKind, description string) *PortError {
	return &PortError{kind: kind, description: description}
}

// FromIOError wraps a native I/O error. The kind is IoError unless the
// native error already identifies a missing device or an invalid argument,
// in which case the more specific kind is used. The native error stays
// reachable through errors.Unwrap, so the round trip native error ->
// PortError -> errors.Is/As is lossless.
func FromIOError(err error) *PortError {
	kind := IoError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = NoDevice
	case errors.Is(err, fs.ErrInvalid):
		kind = InvalidInput
	}
	return &PortError{kind: kind, cause: err}
}

func portError(kind ErrorKind, description string, cause error) *PortError {
	return &PortError{kind: kind, description: description, cause: cause}
}

func errTimeout() *PortError {
	return &PortError{kind: IoError, description: "operation timed out", cause: os.ErrDeadlineExceeded}
}

// Error returns the description, followed by the native error when one is
// attached.
func (e *PortError) Error() string {
	switch {
	case e.description != "" && e.cause != nil:
		return e.description + ": " + e.cause.Error()
	case e.description != "":
		return e.description
	case e.cause != nil:
		return e.cause.Error()
	default:
		return e.kind.String()
	}
}

// Kind returns the error's classification.
func (e *PortError) Kind() ErrorKind {
	return e.kind
}

// Unwrap returns the native error this PortError was built from, if any.
func (e *PortError) Unwrap() error {
	return e.cause
}

// Is maps the kind back onto the standard library sentinels, so that
// errors.Is(err, fs.ErrNotExist) holds for NoDevice errors,
// errors.Is(err, fs.ErrInvalid) for InvalidInput ones and
// errors.Is(err, os.ErrDeadlineExceeded) for timeouts.
func (e *PortError) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return e.kind == NoDevice
	case fs.ErrInvalid:
		return e.kind == InvalidInput
	case os.ErrDeadlineExceeded:
		return e.Timeout()
	}
	return false
}

// Timeout reports whether this error was caused by an expired read or
// write timeout.
func (e *PortError) Timeout() bool {
	if e.cause == nil {
		return false
	}
	if e.cause == os.ErrDeadlineExceeded {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.cause, &t) && t.Timeout()
}
