// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"math"
	"syscall"
	"time"

	"golang.org/x/exp/etw/guid"
)

// A Value holds one argument of an event. Numbers, booleans and times are
// packed into a uint64 and strings are held directly, so constructing a Value
// for them does not allocate.
//
// The in-type of a Value is that of the Go type it was built from. A field
// accepts a value whose in-type has the same shape: any string for any of the
// string in-types, a uint32 for HexInt32, and so on; see Field for how the
// value is then laid out.
type Value struct {
	typ     InType
	packed  uint64
	str     string
	untyped interface{} // []byte, guid.GUID, []Value or a slice
}

func Int8(v int8) Value     { return Value{typ: InTypeInt8, packed: uint64(v)} }
func Int16(v int16) Value   { return Value{typ: InTypeInt16, packed: uint64(v)} }
func Int32(v int32) Value   { return Value{typ: InTypeInt32, packed: uint64(v)} }
func Int64(v int64) Value   { return Value{typ: InTypeInt64, packed: uint64(v)} }
func Uint8(v uint8) Value   { return Value{typ: InTypeUint8, packed: uint64(v)} }
func Uint16(v uint16) Value { return Value{typ: InTypeUint16, packed: uint64(v)} }
func Uint32(v uint32) Value { return Value{typ: InTypeUint32, packed: uint64(v)} }
func Uint64(v uint64) Value { return Value{typ: InTypeUint64, packed: v} }

// Int is a 64-bit integer value.
func Int(v int) Value { return Int64(int64(v)) }

// Uint is a 64-bit unsigned integer value.
func Uint(v uint) Value { return Uint64(uint64(v)) }

func Uintptr(v uintptr) Value { return Value{typ: InTypeHexInt64, packed: uint64(v)} }

func Float32(v float32) Value { return Value{typ: InTypeFloat, packed: uint64(math.Float32bits(v))} }
func Float64(v float64) Value { return Value{typ: InTypeDouble, packed: math.Float64bits(v)} }

func Bool(v bool) Value {
	var b uint64
	if v {
		b = 1
	}
	return Value{typ: InTypeBool32, packed: b}
}

func String(v string) Value { return Value{typ: InTypeUnicodeString, str: v} }

func Bytes(v []byte) Value { return Value{typ: InTypeCountedBinary, untyped: v} }

func GUID(v guid.GUID) Value { return Value{typ: InTypeGUID, untyped: v} }

// Time is a FILETIME value. Times are truncated to 100ns; times before 1601
// are written as zero.
func Time(v time.Time) Value { return Value{typ: InTypeFileTime, packed: toFileTime(v)} }

// Errno is a Win32 error code value.
func Errno(v syscall.Errno) Value { return Uint32(uint32(v)) }

// Error is the message of err, or the empty string for a nil error.
func Error(err error) Value {
	if err == nil {
		return String("")
	}
	return String(err.Error())
}

// StructValue holds the members of a Struct field, in declared order.
func StructValue(members ...Value) Value { return Value{typ: InTypeStruct, untyped: members} }

// Element is the set of element types an array value may have.
type Element interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | bool | string | guid.GUID
}

// Slice is an array value for an Array or FixedArray field.
func Slice[T Element](v []T) Value {
	var zero T
	return Value{typ: elementOf(zero).typ | InTypeVCount, untyped: v}
}

// elementOf converts one element of a Slice to the Value it encodes as.
func elementOf[T Element](v T) Value {
	switch v := any(v).(type) {
	case int8:
		return Int8(v)
	case int16:
		return Int16(v)
	case int32:
		return Int32(v)
	case int64:
		return Int64(v)
	case uint8:
		return Uint8(v)
	case uint16:
		return Uint16(v)
	case uint32:
		return Uint32(v)
	case uint64:
		return Uint64(v)
	case float32:
		return Float32(v)
	case float64:
		return Float64(v)
	case bool:
		return Bool(v)
	case string:
		return String(v)
	case guid.GUID:
		return GUID(v)
	}
	panic("unreachable")
}

// InType reports the in-type of the Go value v was built from.
func (v Value) InType() InType { return v.typ }

// fileTimeEpochDelta is the number of 100ns intervals between 1601-01-01
// and 1970-01-01.
const fileTimeEpochDelta = 116444736000000000

func toFileTime(t time.Time) uint64 {
	// Split the computation so that times far from 1970 do not overflow
	// UnixNano.
	ticks := t.Unix()*1e7 + int64(t.Nanosecond())/100 + fileTimeEpochDelta
	if ticks < 0 {
		return 0
	}
	return uint64(ticks)
}

// FromFileTime converts a FILETIME tick count back to a UTC time.
func FromFileTime(ft uint64) time.Time {
	ticks := int64(ft) - fileTimeEpochDelta
	return time.Unix(ticks/1e7, (ticks%1e7)*100).UTC()
}
