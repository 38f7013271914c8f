// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import "fmt"

// InType describes how a field's value is laid out in event data.
// The low five bits are the base type; the high bits are flags.
type InType uint8

const (
	InTypeNull InType = iota
	InTypeUnicodeString
	InTypeAnsiString
	InTypeInt8
	InTypeUint8
	InTypeInt16
	InTypeUint16
	InTypeInt32
	InTypeUint32
	InTypeInt64
	InTypeUint64
	InTypeFloat
	InTypeDouble
	InTypeBool32
	InTypeBinary
	InTypeGUID
	_ // pointer-sized integers are not supported, use the Hex types
	InTypeFileTime
	InTypeSystemTime
	InTypeSID
	InTypeHexInt32
	InTypeHexInt64
	InTypeCountedString
	InTypeCountedAnsiString
	InTypeStruct
	InTypeCountedBinary
)

const (
	// InTypeVCount marks an array whose element count is written as a
	// uint16 ahead of the elements in the event data.
	InTypeVCount InType = 0x20
	// InTypeCCount marks an array whose element count is fixed in the
	// metadata.
	InTypeCCount InType = 0x40
	// InTypeChain is set in metadata when an OutType byte follows.
	InTypeChain InType = 0x80

	inTypeMask  InType = 0x1f
	inTypeArray        = InTypeVCount | InTypeCCount
)

// Base returns t without its flags.
func (t InType) Base() InType { return t & inTypeMask }

// IsArray reports whether t carries either array flag.
func (t InType) IsArray() bool { return t&inTypeArray != 0 }

var inTypeNames = [...]string{
	InTypeNull:              "Null",
	InTypeUnicodeString:     "UnicodeString",
	InTypeAnsiString:        "AnsiString",
	InTypeInt8:              "Int8",
	InTypeUint8:             "Uint8",
	InTypeInt16:             "Int16",
	InTypeUint16:            "Uint16",
	InTypeInt32:             "Int32",
	InTypeUint32:            "Uint32",
	InTypeInt64:             "Int64",
	InTypeUint64:            "Uint64",
	InTypeFloat:             "Float",
	InTypeDouble:            "Double",
	InTypeBool32:            "Bool32",
	InTypeBinary:            "Binary",
	InTypeGUID:              "GUID",
	InTypeFileTime:          "FileTime",
	InTypeSystemTime:        "SystemTime",
	InTypeSID:               "SID",
	InTypeHexInt32:          "HexInt32",
	InTypeHexInt64:          "HexInt64",
	InTypeCountedString:     "CountedString",
	InTypeCountedAnsiString: "CountedAnsiString",
	InTypeStruct:            "Struct",
	InTypeCountedBinary:     "CountedBinary",
}

func (t InType) String() string {
	var s string
	if b := int(t.Base()); b < len(inTypeNames) && inTypeNames[b] != "" {
		s = inTypeNames[b]
	} else {
		s = fmt.Sprintf("InType(%d)", b)
	}
	switch {
	case t&InTypeVCount != 0:
		s += "[]"
	case t&InTypeCCount != 0:
		s += "[N]"
	}
	return s
}

// OutType is a formatting hint for consumers. OutTypeDefault leaves the
// choice to the in-type.
type OutType uint8

const (
	OutTypeDefault OutType = iota
	OutTypeNoPrint
	OutTypeString
	OutTypeBoolean
	OutTypeHex
	OutTypePID
	OutTypeTID
	OutTypePort
	OutTypeIPv4
	OutTypeIPv6
	OutTypeSocketAddress
	OutTypeXML
	OutTypeJSON
	OutTypeWin32Error
	OutTypeNTStatus
	OutTypeHResult
	OutTypeFileTime
	OutTypeSigned
	OutTypeUnsigned
	OutTypeUTF8        OutType = 35
	OutTypePKCS7       OutType = 36
	OutTypeCodePointer OutType = 37
	OutTypeDateTimeUTC OutType = 38
)
