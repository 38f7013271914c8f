// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"math"
	"strings"

	"golang.org/x/xerrors"
)

// Field declares one field of an event: its name and how its value is
// encoded. Fields are created with the constructors below and are not
// modified after the event is declared.
type Field struct {
	Name    string
	InType  InType // base type, plus InTypeVCount or InTypeCCount for arrays
	OutType OutType
	Count   uint16  // element count of an InTypeCCount array
	Fields  []Field // members of an InTypeStruct field
}

func newField(name string, in InType, out OutType) Field {
	return Field{Name: name, InType: in, OutType: out}
}

// StringField declares a string encoded as NUL-terminated UTF-16.
func StringField(name string) Field { return newField(name, InTypeUnicodeString, OutTypeDefault) }

// CountedStringField declares a string encoded as UTF-16 preceded by its
// length in bytes.
func CountedStringField(name string) Field {
	return newField(name, InTypeCountedString, OutTypeDefault)
}

// UTF8Field declares a string encoded as UTF-8 preceded by its length in
// bytes.
func UTF8Field(name string) Field { return newField(name, InTypeCountedAnsiString, OutTypeUTF8) }

// JSONField declares a UTF-8 string that consumers display as JSON.
func JSONField(name string) Field { return newField(name, InTypeCountedAnsiString, OutTypeJSON) }

func Int8Field(name string) Field    { return newField(name, InTypeInt8, OutTypeDefault) }
func Int16Field(name string) Field   { return newField(name, InTypeInt16, OutTypeDefault) }
func Int32Field(name string) Field   { return newField(name, InTypeInt32, OutTypeDefault) }
func Int64Field(name string) Field   { return newField(name, InTypeInt64, OutTypeDefault) }
func Uint8Field(name string) Field   { return newField(name, InTypeUint8, OutTypeDefault) }
func Uint16Field(name string) Field  { return newField(name, InTypeUint16, OutTypeDefault) }
func Uint32Field(name string) Field  { return newField(name, InTypeUint32, OutTypeDefault) }
func Uint64Field(name string) Field  { return newField(name, InTypeUint64, OutTypeDefault) }
func Float32Field(name string) Field { return newField(name, InTypeFloat, OutTypeDefault) }
func Float64Field(name string) Field { return newField(name, InTypeDouble, OutTypeDefault) }

// BoolField declares a boolean, encoded as a 32-bit integer.
func BoolField(name string) Field { return newField(name, InTypeBool32, OutTypeBoolean) }

// BinaryField declares a byte slice preceded by its length.
func BinaryField(name string) Field { return newField(name, InTypeCountedBinary, OutTypeDefault) }

func GUIDField(name string) Field { return newField(name, InTypeGUID, OutTypeDefault) }

// TimeField declares a time.Time, encoded as a FILETIME.
func TimeField(name string) Field { return newField(name, InTypeFileTime, OutTypeDefault) }

func HexInt32Field(name string) Field { return newField(name, InTypeHexInt32, OutTypeDefault) }
func HexInt64Field(name string) Field { return newField(name, InTypeHexInt64, OutTypeDefault) }

// UintptrField declares a pointer-sized value, shown in hexadecimal.
func UintptrField(name string) Field { return HexInt64Field(name) }

// Win32ErrorField declares a Win32 error code.
func Win32ErrorField(name string) Field { return newField(name, InTypeUint32, OutTypeWin32Error) }

// HResultField declares an HRESULT.
func HResultField(name string) Field { return newField(name, InTypeInt32, OutTypeHResult) }

// Struct declares a field grouping the given member fields. A struct must
// have between 1 and 127 members.
func Struct(name string, fields ...Field) Field {
	return Field{Name: name, InType: InTypeStruct, Fields: fields}
}

// cloneFields returns a copy of fs that shares no struct member slices
// with it.
func cloneFields(fs []Field) []Field {
	if fs == nil {
		return nil
	}
	out := make([]Field, len(fs))
	for i, f := range fs {
		f.Fields = cloneFields(f.Fields)
		out[i] = f
	}
	return out
}

// Array turns the scalar field f into an array whose length is written with
// every value.
func Array(f Field) Field {
	f.InType = f.InType.Base() | InTypeVCount
	return f
}

// FixedArray turns the scalar field f into an array of exactly n elements.
func FixedArray(f Field, n uint16) Field {
	f.InType = f.InType.Base() | InTypeCCount
	f.Count = n
	return f
}

// WithOutType returns f with a different formatting hint, for example
// OutTypeHex for an integer or OutTypeXML for a string.
func (f Field) WithOutType(out OutType) Field {
	f.OutType = out
	return f
}

// maxStructFields is the largest member count an out-type byte can hold
// without colliding with the chain flag.
const maxStructFields = 127

func validateFields(fields []Field) error {
	for i := range fields {
		if err := validateField(&fields[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateField(f *Field) error {
	if err := validateName(f.Name); err != nil {
		return err
	}
	if f.InType&InTypeChain != 0 || f.InType&inTypeArray == inTypeArray {
		return xerrors.Errorf("field %q has flags %#x: %w", f.Name, uint8(f.InType), ErrInvalidField)
	}
	base := f.InType.Base()
	switch base {
	case InTypeNull, InTypeSystemTime, InTypeSID, InTypeBinary:
		return xerrors.Errorf("field %q has in-type %v: %w", f.Name, base, ErrInvalidField)
	case InTypeStruct:
		if f.InType.IsArray() {
			return xerrors.Errorf("field %q is an array of structs: %w", f.Name, ErrInvalidField)
		}
		if len(f.Fields) == 0 || len(f.Fields) > maxStructFields {
			return xerrors.Errorf("struct %q has %d members: %w", f.Name, len(f.Fields), ErrInvalidField)
		}
		return validateFields(f.Fields)
	}
	if base > InTypeCountedBinary {
		return xerrors.Errorf("field %q has in-type %v: %w", f.Name, base, ErrInvalidField)
	}
	if len(f.Fields) != 0 {
		return xerrors.Errorf("field %q has members but is not a struct: %w", f.Name, ErrInvalidField)
	}
	if f.InType&InTypeCCount != 0 && f.Count == 0 {
		return xerrors.Errorf("fixed array %q has no elements: %w", f.Name, ErrInvalidField)
	}
	if f.InType&InTypeCCount == 0 && f.Count != 0 {
		return xerrors.Errorf("field %q has a count but is not a fixed array: %w", f.Name, ErrInvalidField)
	}
	return nil
}

func validateName(name string) error {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return xerrors.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// checkLen16 reports whether n fits in a 16-bit length field.
func checkLen16(n int) bool { return n <= math.MaxUint16 }
