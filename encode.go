// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"

	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

// compatible reports whether a value of in-type v may be written to a field
// of in-type f. Both are base types.
func compatible(f, v InType) bool {
	switch f {
	case InTypeUnicodeString, InTypeAnsiString, InTypeCountedString, InTypeCountedAnsiString:
		return v == InTypeUnicodeString
	case InTypeUint32, InTypeHexInt32:
		return v == InTypeUint32 || v == InTypeHexInt32
	case InTypeUint64, InTypeHexInt64:
		return v == InTypeUint64 || v == InTypeHexInt64
	}
	return f == v
}

// appendValue appends the encoding of v, as declared by f, to b.
func appendValue(b []byte, f *Field, v Value) ([]byte, error) {
	if !compatible(f.InType.Base(), v.typ.Base()) || f.InType.IsArray() != v.typ.IsArray() {
		return b, xerrors.Errorf("field %q is %v, value is %v: %w", f.Name, f.InType, v.typ, ErrTypeMismatch)
	}
	if f.InType.IsArray() {
		return appendArray(b, f, v)
	}
	return appendScalar(b, f, v)
}

func appendScalar(b []byte, f *Field, v Value) ([]byte, error) {
	switch f.InType.Base() {
	case InTypeInt8, InTypeUint8:
		return append(b, byte(v.packed)), nil
	case InTypeInt16, InTypeUint16:
		return binary.LittleEndian.AppendUint16(b, uint16(v.packed)), nil
	case InTypeInt32, InTypeUint32, InTypeHexInt32, InTypeFloat, InTypeBool32:
		return binary.LittleEndian.AppendUint32(b, uint32(v.packed)), nil
	case InTypeInt64, InTypeUint64, InTypeHexInt64, InTypeDouble, InTypeFileTime:
		return binary.LittleEndian.AppendUint64(b, v.packed), nil
	case InTypeGUID:
		g, _ := v.untyped.(guid.GUID)
		a := g.ToWindowsArray()
		return append(b, a[:]...), nil
	case InTypeUnicodeString:
		if strings.IndexByte(v.str, 0) >= 0 {
			return b, xerrors.Errorf("field %q: %w", f.Name, ErrEmbeddedNUL)
		}
		b = appendUTF16(b, v.str)
		return append(b, 0, 0), nil
	case InTypeAnsiString:
		if strings.IndexByte(v.str, 0) >= 0 {
			return b, xerrors.Errorf("field %q: %w", f.Name, ErrEmbeddedNUL)
		}
		b = append(b, v.str...)
		return append(b, 0), nil
	case InTypeCountedString:
		n := utf16Len(v.str) * 2
		if !checkLen16(n) {
			return b, xerrors.Errorf("field %q: %d bytes: %w", f.Name, n, ErrUnsupportedSize)
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(n))
		return appendUTF16(b, v.str), nil
	case InTypeCountedAnsiString:
		if !checkLen16(len(v.str)) {
			return b, xerrors.Errorf("field %q: %d bytes: %w", f.Name, len(v.str), ErrUnsupportedSize)
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(len(v.str)))
		return append(b, v.str...), nil
	case InTypeCountedBinary:
		data, _ := v.untyped.([]byte)
		if !checkLen16(len(data)) {
			return b, xerrors.Errorf("field %q: %d bytes: %w", f.Name, len(data), ErrUnsupportedSize)
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(len(data)))
		return append(b, data...), nil
	case InTypeStruct:
		members, _ := v.untyped.([]Value)
		if len(members) != len(f.Fields) {
			return b, xerrors.Errorf("struct %q has %d members, got %d values: %w", f.Name, len(f.Fields), len(members), ErrFieldCount)
		}
		var err error
		for i := range f.Fields {
			if b, err = appendValue(b, &f.Fields[i], members[i]); err != nil {
				return b, err
			}
		}
		return b, nil
	}
	return b, xerrors.Errorf("field %q has in-type %v: %w", f.Name, f.InType, ErrInvalidField)
}

func appendArray(b []byte, f *Field, v Value) ([]byte, error) {
	elem := *f
	elem.InType = f.InType.Base()
	elem.Count = 0

	switch s := v.untyped.(type) {
	case []int8:
		return appendSlice(b, f, &elem, s)
	case []int16:
		return appendSlice(b, f, &elem, s)
	case []int32:
		return appendSlice(b, f, &elem, s)
	case []int64:
		return appendSlice(b, f, &elem, s)
	case []uint8:
		return appendSlice(b, f, &elem, s)
	case []uint16:
		return appendSlice(b, f, &elem, s)
	case []uint32:
		return appendSlice(b, f, &elem, s)
	case []uint64:
		return appendSlice(b, f, &elem, s)
	case []float32:
		return appendSlice(b, f, &elem, s)
	case []float64:
		return appendSlice(b, f, &elem, s)
	case []bool:
		return appendSlice(b, f, &elem, s)
	case []string:
		return appendSlice(b, f, &elem, s)
	case []guid.GUID:
		return appendSlice(b, f, &elem, s)
	}
	return b, xerrors.Errorf("field %q: unsupported array value %T: %w", f.Name, v.untyped, ErrTypeMismatch)
}

// appendSlice writes the elements of s. A variable-count array is preceded
// by its length; a fixed-count array must have exactly f.Count elements.
func appendSlice[T Element](b []byte, f, elem *Field, s []T) ([]byte, error) {
	if f.InType&InTypeCCount != 0 {
		if len(s) != int(f.Count) {
			return b, xerrors.Errorf("array %q has %d elements, want %d: %w", f.Name, len(s), f.Count, ErrFieldCount)
		}
	} else {
		if !checkLen16(len(s)) {
			return b, xerrors.Errorf("array %q has %d elements: %w", f.Name, len(s), ErrFieldTooLarge)
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	}
	var err error
	for _, x := range s {
		if b, err = appendScalar(b, elem, elementOf(x)); err != nil {
			return b, err
		}
	}
	return b, nil
}

// appendUTF16 appends s as little-endian UTF-16, without a terminator.
func appendUTF16(b []byte, s string) []byte {
	for _, r := range s {
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			b = binary.LittleEndian.AppendUint16(b, uint16(r1))
			b = binary.LittleEndian.AppendUint16(b, uint16(r2))
			continue
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(r))
	}
	return b
}

// utf16Len returns the number of UTF-16 code units appendUTF16 writes for s.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n++
		if r >= 0x10000 {
			n++
		}
	}
	return n
}

// testHookEncode, if non-nil, is called once per encoded event.
var testHookEncode func()

// encodeValues serializes the values of one emission into a single buffer.
// ends receives the end offset of each field's encoding, so that field i
// occupies data[ends[i-1]:ends[i]].
func (e *Event) encodeValues(data []byte, ends []int, values []Value) ([]byte, []int, error) {
	if testHookEncode != nil {
		testHookEncode()
	}
	if len(values) != len(e.fields) {
		return data, ends, xerrors.Errorf("event %q has %d fields, got %d values: %w", e.name, len(e.fields), len(values), ErrFieldCount)
	}
	var err error
	for i := range e.fields {
		if data, err = appendValue(data, &e.fields[i], values[i]); err != nil {
			return data, ends, xerrors.Errorf("event %q: %w", e.name, err)
		}
		ends = append(ends, len(data))
	}
	return data, ends, nil
}
