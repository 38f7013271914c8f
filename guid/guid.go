// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guid provides the 128-bit identifiers ETW uses for providers and
// activities.
//
// A GUID has the field layout of the Windows GUID structure, so its in-memory
// representation is not the RFC 4122 byte order: the first three fields are
// little-endian on the wire. ToArray and FromArray convert to and from the
// RFC 4122 order, ToWindowsArray and FromWindowsArray to and from the
// in-memory order.
package guid

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/google/uuid"
)

// GUID is a 128-bit identifier laid out like the Windows GUID structure.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// A FormatError reports text that could not be parsed as a GUID.
type FormatError struct {
	Text string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("guid: invalid format %q: %v", e.Text, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// eventSourceNamespace is the namespace .NET's EventSource hashes provider
// names under.
var eventSourceNamespace = GUID{0x482C2DB2, 0xC390, 0x47C8, [8]byte{0x87, 0xF8, 0x1A, 0x15, 0xBF, 0xC1, 0x30, 0xFB}}

// Parse parses s as a GUID. The canonical form
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx is accepted, as are the braced,
// urn:uuid: and undashed 32 digit forms.
func Parse(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, &FormatError{Text: s, Err: err}
	}
	return FromArray(u), nil
}

// MustParse is like Parse but panics if s cannot be parsed.
// It is intended for package level variables.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// New returns a random GUID, suitable as an activity ID.
func New() (GUID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return GUID{}, err
	}
	return FromArray(u), nil
}

// FromName derives a GUID from a namespace and a name. The same inputs always
// produce the same GUID, in every process.
//
// The algorithm is the one EventSource uses. It is close to RFC 4122 version
// 5, but the name is upper-cased and hashed as big-endian UTF-16, no variant
// is set, and the digest is read in the Windows field order.
func FromName(namespace GUID, name string) GUID {
	h := sha1.New()
	ns := namespace.ToArray()
	h.Write(ns[:])
	var u [2]byte
	for _, c := range utf16.Encode([]rune(strings.ToUpper(name))) {
		binary.BigEndian.PutUint16(u[:], c)
		h.Write(u[:])
	}
	sum := h.Sum(nil)
	sum[7] = (sum[7] & 0x0f) | 0x50

	var a [16]byte
	copy(a[:], sum)
	return FromWindowsArray(a)
}

// ProviderIDFromName returns the provider ID EventSource and TraceLogging
// tools derive for a provider name.
func ProviderIDFromName(name string) GUID {
	return FromName(eventSourceNamespace, name)
}

// FromArray constructs a GUID from a big-endian (RFC 4122) byte array.
func FromArray(b [16]byte) GUID {
	var g GUID
	g.Data1 = binary.BigEndian.Uint32(b[0:4])
	g.Data2 = binary.BigEndian.Uint16(b[4:6])
	g.Data3 = binary.BigEndian.Uint16(b[6:8])
	copy(g.Data4[:], b[8:16])
	return g
}

// ToArray returns the big-endian (RFC 4122) bytes of g.
func (g GUID) ToArray() [16]byte {
	var b [16]byte
	binary.BigEndian.PutUint32(b[0:4], g.Data1)
	binary.BigEndian.PutUint16(b[4:6], g.Data2)
	binary.BigEndian.PutUint16(b[6:8], g.Data3)
	copy(b[8:16], g.Data4[:])
	return b
}

// FromWindowsArray constructs a GUID from the in-memory byte layout of a
// Windows GUID.
func FromWindowsArray(b [16]byte) GUID {
	var g GUID
	g.Data1 = binary.LittleEndian.Uint32(b[0:4])
	g.Data2 = binary.LittleEndian.Uint16(b[4:6])
	g.Data3 = binary.LittleEndian.Uint16(b[6:8])
	copy(g.Data4[:], b[8:16])
	return g
}

// ToWindowsArray returns the in-memory byte layout of g, which is how a GUID
// is written into event metadata and event data.
func (g GUID) ToWindowsArray() [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[0:4], g.Data1)
	binary.LittleEndian.PutUint16(b[4:6], g.Data2)
	binary.LittleEndian.PutUint16(b[6:8], g.Data3)
	copy(b[8:16], g.Data4[:])
	return b
}

// IsZero reports whether g is the nil GUID.
func (g GUID) IsZero() bool { return g == GUID{} }

// Compare returns -1, 0 or +1 ordering g and h by their RFC 4122 bytes.
func (g GUID) Compare(h GUID) int {
	a, b := g.ToArray(), h.ToArray()
	return bytes.Compare(a[:], b[:])
}

// String returns the canonical lower-case form of g, without braces.
func (g GUID) String() string {
	return uuid.UUID(g.ToArray()).String()
}

func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GUID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
