// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"encoding/binary"

	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

// Metadata layout, all integers little-endian:
//
//	provider: [u16 size][name UTF-16 NUL][id 16 bytes][traits...]
//	trait:    [u16 size][u8 type][data]
//	event:    [u16 size][name UTF-16 NUL][field...]
//	field:    [name UTF-16 NUL][u8 in-type][u8 out-type if in-type has InTypeChain]
//	          [u16 count if array][member fields if struct]
//
// Sizes include the size field itself. The out-type of a struct is its
// member count. A variable-count array declares a count of zero.

// providerTraitGroup is the trait type of a provider group ID.
const providerTraitGroup = 1

// testHookMetadata, if non-nil, is called each time event metadata is built.
var testHookMetadata func()

func encodeProviderMetadata(name string, id guid.GUID, group *guid.GUID) ([]byte, error) {
	b := make([]byte, 2, 2+2*len(name)+2+16+19)
	b = appendUTF16(b, name)
	b = append(b, 0, 0)
	a := id.ToWindowsArray()
	b = append(b, a[:]...)
	if group != nil {
		const size = 2 + 1 + 16
		b = binary.LittleEndian.AppendUint16(b, size)
		b = append(b, providerTraitGroup)
		g := group.ToWindowsArray()
		b = append(b, g[:]...)
	}
	if !checkLen16(len(b)) {
		return nil, xerrors.Errorf("provider %q metadata is %d bytes: %w", name, len(b), ErrFieldTooLarge)
	}
	binary.LittleEndian.PutUint16(b, uint16(len(b)))
	return b, nil
}

func encodeEventMetadata(name string, fields []Field) ([]byte, error) {
	if testHookMetadata != nil {
		testHookMetadata()
	}
	b := make([]byte, 2, 64)
	b = appendUTF16(b, name)
	b = append(b, 0, 0)
	for i := range fields {
		b = appendFieldMetadata(b, &fields[i])
	}
	if !checkLen16(len(b)) {
		return nil, xerrors.Errorf("event %q metadata is %d bytes: %w", name, len(b), ErrFieldTooLarge)
	}
	binary.LittleEndian.PutUint16(b, uint16(len(b)))
	return b, nil
}

func appendFieldMetadata(b []byte, f *Field) []byte {
	b = appendUTF16(b, f.Name)
	b = append(b, 0, 0)
	out := f.OutType
	if f.InType.Base() == InTypeStruct {
		out = OutType(len(f.Fields))
	}
	if out != OutTypeDefault {
		b = append(b, byte(f.InType|InTypeChain), byte(out))
	} else {
		b = append(b, byte(f.InType))
	}
	if f.InType.IsArray() {
		b = binary.LittleEndian.AppendUint16(b, f.Count)
	}
	for i := range f.Fields {
		b = appendFieldMetadata(b, &f.Fields[i])
	}
	return b
}
