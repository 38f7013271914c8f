// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows && (amd64 || arm64)

package etw

import (
	"sync"
	"syscall"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/exp/etw/guid"
	"golang.org/x/sys/windows"
	"golang.org/x/xerrors"
)

var (
	modadvapi32 = windows.NewLazySystemDLL("advapi32.dll")

	procEventRegister       = modadvapi32.NewProc("EventRegister")
	procEventUnregister     = modadvapi32.NewProc("EventUnregister")
	procEventWriteTransfer  = modadvapi32.NewProc("EventWriteTransfer")
	procEventSetInformation = modadvapi32.NewProc("EventSetInformation")
)

// EVENT_INFO_CLASS values for EventSetInformation.
const (
	eventProviderSetTraits         = 2
	eventProviderUseDescriptorType = 3
)

var defaultBackend Backend = &sysBackend{
	callbacks: make(map[uintptr]EnableCallback),
	contexts:  make(map[RegHandle]uintptr),
}

// sysBackend writes to ETW through advapi32.
//
// Callbacks created with windows.NewCallback are never freed, so every
// registration shares one trampoline and is told apart by the context value
// passed to EventRegister.
type sysBackend struct {
	mu        sync.Mutex
	next      uintptr
	callbacks map[uintptr]EnableCallback
	contexts  map[RegHandle]uintptr
}

var (
	trampolineOnce sync.Once
	trampoline     uintptr
)

func (b *sysBackend) Register(name string, id guid.GUID, cb EnableCallback) (RegHandle, error) {
	if err := procEventRegister.Find(); err != nil {
		return 0, errorNotSupported
	}
	trampolineOnce.Do(func() {
		trampoline = windows.NewCallback(b.enableCallback)
	})

	b.mu.Lock()
	b.next++
	ctx := b.next
	b.callbacks[ctx] = cb
	b.mu.Unlock()

	var h RegHandle
	r0, _, _ := syscall.SyscallN(procEventRegister.Addr(),
		uintptr(unsafe.Pointer(&id)),
		trampoline,
		ctx,
		uintptr(unsafe.Pointer(&h)))
	if r0 != 0 {
		b.mu.Lock()
		delete(b.callbacks, ctx)
		b.mu.Unlock()
		return 0, syscall.Errno(r0)
	}

	b.mu.Lock()
	b.contexts[h] = ctx
	b.mu.Unlock()
	return h, nil
}

// SetTraits marks descriptors with their type, so metadata is not mistaken
// for data, and then sets the provider traits. Both are attempted.
func (b *sysBackend) SetTraits(h RegHandle, traits []byte) error {
	useType := uint8(1)
	var err error
	if serr := b.setInformation(h, eventProviderUseDescriptorType, unsafe.Pointer(&useType), 1); serr != nil {
		err = xerrors.Errorf("using descriptor types: %w", serr)
	}
	if len(traits) > 0 {
		if serr := b.setInformation(h, eventProviderSetTraits, unsafe.Pointer(&traits[0]), uint32(len(traits))); serr != nil {
			err = multierr.Append(err, xerrors.Errorf("setting traits: %w", serr))
		}
	}
	return err
}

func (b *sysBackend) setInformation(h RegHandle, class uint32, info unsafe.Pointer, size uint32) error {
	if err := procEventSetInformation.Find(); err != nil {
		return errorNotSupported
	}
	r0, _, _ := syscall.SyscallN(procEventSetInformation.Addr(),
		uintptr(h),
		uintptr(class),
		uintptr(info),
		uintptr(size))
	if r0 != 0 {
		return syscall.Errno(r0)
	}
	return nil
}

func (b *sysBackend) Unregister(h RegHandle) error {
	r0, _, _ := syscall.SyscallN(procEventUnregister.Addr(), uintptr(h))

	b.mu.Lock()
	if ctx, ok := b.contexts[h]; ok {
		delete(b.callbacks, ctx)
		delete(b.contexts, h)
	}
	b.mu.Unlock()

	if r0 != 0 {
		return syscall.Errno(r0)
	}
	return nil
}

func (b *sysBackend) Write(h RegHandle, desc *EventDescriptor, activityID, relatedActivityID *guid.GUID, data []DataDescriptor) error {
	var ptr *DataDescriptor
	if len(data) > 0 {
		ptr = &data[0]
	}
	r0, _, _ := syscall.SyscallN(procEventWriteTransfer.Addr(),
		uintptr(h),
		uintptr(unsafe.Pointer(desc)),
		uintptr(unsafe.Pointer(activityID)),
		uintptr(unsafe.Pointer(relatedActivityID)),
		uintptr(len(data)),
		uintptr(unsafe.Pointer(ptr)))
	if r0 != 0 {
		return syscall.Errno(r0)
	}
	return nil
}

// enableCallback is the ENABLECALLBACK called by ETW. Every argument is
// pointer sized on 64-bit Windows, which NewCallback requires.
func (b *sysBackend) enableCallback(sourceID *guid.GUID, state, level, matchAny, matchAll, filterData, ctx uintptr) uintptr {
	b.mu.Lock()
	cb := b.callbacks[ctx]
	b.mu.Unlock()
	if cb != nil {
		cb(*sourceID, ProviderState(state), Level(level), uint64(matchAny), uint64(matchAll))
	}
	return 0
}
