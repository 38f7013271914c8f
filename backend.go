// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import "golang.org/x/exp/etw/guid"

// RegHandle is the opaque registration token a Backend returns.
type RegHandle uint64

// EnableCallback receives enablement notifications for a provider. It may be
// called on any goroutine, including during Backend.Register.
type EnableCallback func(sourceID guid.GUID, state ProviderState, level Level, matchAnyKeyword, matchAllKeyword uint64)

// Backend is the tracing subsystem a Provider registers with and writes to.
// Errors carrying a Win32 code should wrap a syscall.Errno.
//
// SetTraits is called once after Register. Besides recording the provider
// traits it must make the subsystem honor DataDescriptor types; a failure
// is logged and the provider stays usable.
//
// Write must not retain data, or the memory it refers to, after it returns.
// All methods except Register and Unregister may be called concurrently.
type Backend interface {
	Register(name string, id guid.GUID, cb EnableCallback) (RegHandle, error)
	SetTraits(h RegHandle, traits []byte) error
	Unregister(h RegHandle) error
	Write(h RegHandle, desc *EventDescriptor, activityID, relatedActivityID *guid.GUID, data []DataDescriptor) error
}

// DefaultBackend returns the tracing subsystem of the platform. On platforms
// without one, its Register method fails with ERROR_NOT_SUPPORTED.
func DefaultBackend() Backend { return defaultBackend }
