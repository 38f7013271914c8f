// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etwtest

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"

	"golang.org/x/exp/etw"
	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

// ErrMalformed is returned for metadata or data that cannot be decoded.
var ErrMalformed = xerrors.New("etwtest: malformed event")

// ProviderInfo is decoded provider metadata.
type ProviderInfo struct {
	Name  string
	ID    guid.GUID
	Group *guid.GUID
}

// FieldInfo is one decoded field declaration.
type FieldInfo struct {
	Name    string
	InType  etw.InType // without InTypeChain
	OutType etw.OutType
	Count   uint16
	Fields  []FieldInfo
}

// EventInfo is decoded event metadata.
type EventInfo struct {
	Name   string
	Fields []FieldInfo
}

// DecodeProviderMetadata parses the traits a provider registers with.
func DecodeProviderMetadata(b []byte) (ProviderInfo, error) {
	var info ProviderInfo
	r := reader{buf: b}
	size := int(r.u16())
	if r.err != nil || size != len(b) {
		return info, xerrors.Errorf("provider metadata size %d, have %d bytes: %w", size, len(b), ErrMalformed)
	}
	info.Name = r.cstring16()
	info.ID = r.guid()
	for r.err == nil && len(r.buf) > 0 {
		start := len(r.buf)
		tsize := int(r.u16())
		typ := r.u8()
		if tsize < 3 || tsize > start {
			return info, xerrors.Errorf("trait size %d: %w", tsize, ErrMalformed)
		}
		data := r.bytes(tsize - 3)
		if typ == 1 && len(data) == 16 {
			var a [16]byte
			copy(a[:], data)
			g := guid.FromWindowsArray(a)
			info.Group = &g
		}
	}
	if r.err != nil {
		return info, r.err
	}
	return info, nil
}

// DecodeEventMetadata parses an event metadata blob.
func DecodeEventMetadata(b []byte) (EventInfo, error) {
	var info EventInfo
	r := reader{buf: b}
	size := int(r.u16())
	if r.err != nil || size != len(b) {
		return info, xerrors.Errorf("event metadata size %d, have %d bytes: %w", size, len(b), ErrMalformed)
	}
	info.Name = r.cstring16()
	for r.err == nil && len(r.buf) > 0 {
		info.Fields = append(info.Fields, r.field())
	}
	if r.err != nil {
		return info, r.err
	}
	return info, nil
}

func (r *reader) field() FieldInfo {
	f := FieldInfo{Name: r.cstring16()}
	in := etw.InType(r.u8())
	if in&etw.InTypeChain != 0 {
		f.OutType = etw.OutType(r.u8())
		in &^= etw.InTypeChain
	}
	f.InType = in
	if in.IsArray() {
		f.Count = r.u16()
	}
	if in.Base() == etw.InTypeStruct {
		n := int(f.OutType)
		f.OutType = etw.OutTypeDefault
		for i := 0; i < n && r.err == nil; i++ {
			f.Fields = append(f.Fields, r.field())
		}
	}
	return f
}

// DecodeValue decodes one value of field f from the front of b and returns
// it with the remaining bytes.
//
// Scalars decode to the Go type of the matching etw.Value constructor: int8
// through uint64, float32, float64, bool, string, []byte, guid.GUID and
// time.Time (UTC). Arrays decode to a slice of that type, and structs to a
// []interface{} of their members.
func DecodeValue(f FieldInfo, b []byte) (interface{}, []byte, error) {
	r := reader{buf: b}
	v := r.value(f)
	if r.err != nil {
		return nil, b, xerrors.Errorf("field %q: %w", f.Name, r.err)
	}
	return v, r.buf, nil
}

func (r *reader) value(f FieldInfo) interface{} {
	if !f.InType.IsArray() {
		return r.scalar(f)
	}
	n := int(f.Count)
	if f.InType&etw.InTypeVCount != 0 {
		n = int(r.u16())
	}
	elem := f
	elem.InType = f.InType.Base()
	xs := make([]interface{}, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		xs = append(xs, r.scalar(elem))
	}
	return typedSlice(elem.InType, xs)
}

func (r *reader) scalar(f FieldInfo) interface{} {
	switch f.InType.Base() {
	case etw.InTypeInt8:
		return int8(r.u8())
	case etw.InTypeUint8:
		return r.u8()
	case etw.InTypeInt16:
		return int16(r.u16())
	case etw.InTypeUint16:
		return r.u16()
	case etw.InTypeInt32:
		return int32(r.u32())
	case etw.InTypeUint32, etw.InTypeHexInt32:
		return r.u32()
	case etw.InTypeInt64:
		return int64(r.u64())
	case etw.InTypeUint64, etw.InTypeHexInt64:
		return r.u64()
	case etw.InTypeFloat:
		return math.Float32frombits(r.u32())
	case etw.InTypeDouble:
		return math.Float64frombits(r.u64())
	case etw.InTypeBool32:
		return r.u32() != 0
	case etw.InTypeGUID:
		return r.guid()
	case etw.InTypeFileTime:
		return etw.FromFileTime(r.u64())
	case etw.InTypeUnicodeString:
		return r.cstring16()
	case etw.InTypeAnsiString:
		return r.cstring8()
	case etw.InTypeCountedString:
		n := int(r.u16())
		return decodeUTF16(r.bytes(n))
	case etw.InTypeCountedAnsiString:
		n := int(r.u16())
		return string(r.bytes(n))
	case etw.InTypeCountedBinary:
		n := int(r.u16())
		return append([]byte{}, r.bytes(n)...)
	case etw.InTypeStruct:
		members := make([]interface{}, 0, len(f.Fields))
		for _, m := range f.Fields {
			members = append(members, r.value(m))
		}
		return members
	}
	r.fail(xerrors.Errorf("in-type %v: %w", f.InType, ErrMalformed))
	return nil
}

func typedSlice(base etw.InType, xs []interface{}) interface{} {
	switch base {
	case etw.InTypeInt8:
		return collect[int8](xs)
	case etw.InTypeUint8:
		return collect[uint8](xs)
	case etw.InTypeInt16:
		return collect[int16](xs)
	case etw.InTypeUint16:
		return collect[uint16](xs)
	case etw.InTypeInt32:
		return collect[int32](xs)
	case etw.InTypeUint32, etw.InTypeHexInt32:
		return collect[uint32](xs)
	case etw.InTypeInt64:
		return collect[int64](xs)
	case etw.InTypeUint64, etw.InTypeHexInt64:
		return collect[uint64](xs)
	case etw.InTypeFloat:
		return collect[float32](xs)
	case etw.InTypeDouble:
		return collect[float64](xs)
	case etw.InTypeBool32:
		return collect[bool](xs)
	case etw.InTypeGUID:
		return collect[guid.GUID](xs)
	case etw.InTypeFileTime:
		return collect[time.Time](xs)
	case etw.InTypeUnicodeString, etw.InTypeAnsiString, etw.InTypeCountedString, etw.InTypeCountedAnsiString:
		return collect[string](xs)
	}
	return xs
}

func collect[T any](xs []interface{}) []T {
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		v, _ := x.(T)
		out = append(out, v)
	}
	return out
}

// Decoded is a written event decoded against its own metadata.
type Decoded struct {
	EventInfo
	Values []interface{}
}

// Value returns the value of the first field called name, or nil.
func (d *Decoded) Value(name string) interface{} {
	for i, f := range d.Fields {
		if f.Name == name && i < len(d.Values) {
			return d.Values[i]
		}
	}
	return nil
}

// Map returns the values keyed by field name.
func (d *Decoded) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(d.Fields))
	for i, f := range d.Fields {
		if i < len(d.Values) {
			m[f.Name] = d.Values[i]
		}
	}
	return m
}

// Decode decodes e's metadata and data. Each data descriptor must hold
// exactly one field.
func (e *Event) Decode() (*Decoded, error) {
	info, err := DecodeEventMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	if len(e.Data) != len(info.Fields) {
		return nil, xerrors.Errorf("event %q declares %d fields, has %d data descriptors: %w", info.Name, len(info.Fields), len(e.Data), ErrMalformed)
	}
	d := &Decoded{EventInfo: info}
	for i, f := range info.Fields {
		v, rest, err := DecodeValue(f, e.Data[i])
		if err != nil {
			return nil, xerrors.Errorf("event %q: %w", info.Name, err)
		}
		if len(rest) != 0 {
			return nil, xerrors.Errorf("event %q field %q: %d trailing bytes: %w", info.Name, f.Name, len(rest), ErrMalformed)
		}
		d.Values = append(d.Values, v)
	}
	return d, nil
}

// reader consumes little-endian values from buf. The first error sticks and
// later reads return zero values.
type reader struct {
	buf []byte
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
	r.buf = nil
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.buf) {
		r.fail(xerrors.Errorf("need %d bytes, have %d: %w", n, len(r.buf), ErrMalformed))
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u8() uint8 {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.bytes(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.bytes(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.bytes(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *reader) guid() guid.GUID {
	var a [16]byte
	copy(a[:], r.bytes(16))
	return guid.FromWindowsArray(a)
}

// cstring16 reads a NUL-terminated UTF-16LE string.
func (r *reader) cstring16() string {
	var units []uint16
	for r.err == nil {
		u := r.u16()
		if r.err != nil || u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

func (r *reader) cstring8() string {
	for i, c := range r.buf {
		if c == 0 {
			s := string(r.buf[:i])
			r.buf = r.buf[i+1:]
			return s
		}
	}
	r.fail(xerrors.Errorf("unterminated string: %w", ErrMalformed))
	return ""
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}
