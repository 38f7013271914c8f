// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"runtime"
	"unsafe"

	"golang.org/x/exp/etw/guid"
)

// DescriptorType tells the tracing subsystem what a DataDescriptor refers
// to.
type DescriptorType uint8

const (
	DescriptorTypeUserData DescriptorType = iota
	DescriptorTypeEventMetadata
	DescriptorTypeProviderMetadata
)

// DataDescriptor has the layout of EVENT_DATA_DESCRIPTOR on 64-bit Windows.
// It refers to memory it does not own, which is only valid for the duration
// of the Backend.Write call it is passed to.
type DataDescriptor struct {
	Ptr       unsafe.Pointer
	Size      uint32
	Type      DescriptorType
	reserved1 uint8
	reserved2 uint16
}

// Bytes returns the memory d refers to. The result aliases that memory and
// must be copied if it is kept past Backend.Write.
func (d DataDescriptor) Bytes() []byte {
	if d.Ptr == nil || d.Size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(d.Ptr), d.Size)
}

// preallocateDescriptors is the length of a descriptor list that is built
// without allocating.
const preallocateDescriptors = 1 + preallocateFields

// writeEvent submits one event. It is the only place a descriptor list is
// built: the list and the buffers it refers to are pinned for the length of
// the Write call, and the list never leaves this function.
//
// data holds every field's encoding back to back; ends[i] is the end offset
// of field i.
func (p *Provider) writeEvent(ev *Event, activityID, relatedActivityID *guid.GUID, data []byte, ends []int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	var stack [preallocateDescriptors]DataDescriptor
	list := stack[:0]
	if n := 1 + len(ends); n > len(stack) {
		list = make([]DataDescriptor, 0, n)
	}
	list = append(list, pinDescriptor(&pinner, DescriptorTypeEventMetadata, ev.metadata))
	start := 0
	for _, end := range ends {
		list = append(list, pinDescriptor(&pinner, DescriptorTypeUserData, data[start:end]))
		start = end
	}
	if activityID != nil {
		pinner.Pin(activityID)
	}
	if relatedActivityID != nil {
		pinner.Pin(relatedActivityID)
	}

	desc := ev.desc
	if testHookWrite != nil {
		testHookWrite(len(list))
	}
	if err := p.backend.Write(p.handle, &desc, activityID, relatedActivityID, list); err != nil {
		p.log.V(1).Info("write failed", "event", ev.name, "error", err)
		return &SubmitError{Event: ev.name, Code: errorCode(err), Err: err}
	}
	return nil
}

// testHookWrite, if non-nil, is called with the length of each descriptor
// list before it is submitted.
var testHookWrite func(n int)

func pinDescriptor(pinner *runtime.Pinner, typ DescriptorType, b []byte) DataDescriptor {
	if len(b) == 0 {
		return DataDescriptor{Type: typ}
	}
	pinner.Pin(&b[0])
	return DataDescriptor{
		Ptr:  unsafe.Pointer(&b[0]),
		Size: uint32(len(b)),
		Type: typ,
	}
}
