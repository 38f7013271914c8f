// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows || !(amd64 || arm64)

package etw

import "golang.org/x/exp/etw/guid"

var defaultBackend Backend = unsupportedBackend{}

// unsupportedBackend refuses every registration, so a program built for a
// platform without ETW runs with tracing off.
type unsupportedBackend struct{}

func (unsupportedBackend) Register(string, guid.GUID, EnableCallback) (RegHandle, error) {
	return 0, errorNotSupported
}

func (unsupportedBackend) SetTraits(RegHandle, []byte) error { return errorNotSupported }
func (unsupportedBackend) Unregister(RegHandle) error        { return nil }

func (unsupportedBackend) Write(RegHandle, *EventDescriptor, *guid.GUID, *guid.GUID, []DataDescriptor) error {
	return errorNotSupported
}
