// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrFieldTooLarge is returned when an array has more elements, or an
	// event's metadata more bytes, than a 16-bit length field can describe.
	ErrFieldTooLarge = errors.New("etw: field too large")

	// ErrUnsupportedSize is returned when a counted string or binary value
	// is longer than 65535 bytes.
	ErrUnsupportedSize = errors.New("etw: value length exceeds 16 bits")

	// ErrTypeMismatch is returned when a value does not have the type its
	// field was declared with.
	ErrTypeMismatch = errors.New("etw: value does not match field type")

	// ErrFieldCount is returned when the number of values passed to Emit,
	// or the length of a fixed-count array, does not match the declaration.
	ErrFieldCount = errors.New("etw: wrong number of values")

	// ErrEmbeddedNUL is returned by Emit when a value for a NUL-terminated
	// string field contains a NUL character. Counted strings may hold NULs.
	ErrEmbeddedNUL = errors.New("etw: NUL in terminated string")

	// ErrInvalidName is returned by NewEvent for an empty name or one that
	// contains a NUL character.
	ErrInvalidName = errors.New("etw: invalid name")

	// ErrInvalidField is returned by NewEvent for a field whose in-type,
	// array flags or struct members cannot be encoded.
	ErrInvalidField = errors.New("etw: invalid field")

	// ErrClosed is returned when writing to a provider after Close.
	ErrClosed = errors.New("etw: provider closed")
)

// errorNotSupported is ERROR_NOT_SUPPORTED.
const errorNotSupported = syscall.Errno(50)

// A RegistrationError is returned by NewProvider when the tracing subsystem
// refuses to register the provider.
type RegistrationError struct {
	Provider string
	Code     uint32 // Win32 error code
	Err      error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("etw: registering provider %q: win32 error %d", e.Provider, e.Code)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// A SubmitError is returned by Emit when the tracing subsystem fails to
// accept an event, for instance because a session's buffers are full.
// It is safe to ignore.
type SubmitError struct {
	Event string
	Code  uint32 // Win32 error code
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("etw: writing event %q: win32 error %d", e.Event, e.Code)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// errorCode extracts the Win32 code carried by a backend error.
func errorCode(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}
