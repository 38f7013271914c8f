// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package etwtest provides an in-memory etw.Backend and a decoder for the
// self-describing event format, so that providers can be tested on any
// platform.
package etwtest

import (
	"sync"

	"golang.org/x/exp/etw"
	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

// Backend is an etw.Backend that records what is written to it. Providers
// registered with it start disabled; use Enable to turn them on.
type Backend struct {
	// RegisterErr, if set, is returned by Register.
	RegisterErr error
	// TraitsErr, if set, is returned by SetTraits after the traits are
	// recorded.
	TraitsErr error
	// WriteErr, if set, is returned by Write after the event is recorded.
	WriteErr error

	mu     sync.Mutex
	next   etw.RegHandle
	regs   map[etw.RegHandle]*Registration
	events []Event
}

// Registration is a provider registered with a Backend.
type Registration struct {
	Name         string
	ID           guid.GUID
	Traits       []byte
	Unregistered bool

	cb etw.EnableCallback
}

// Event is a copy of one write.
type Event struct {
	Provider          guid.GUID
	Descriptor        etw.EventDescriptor
	ActivityID        *guid.GUID
	RelatedActivityID *guid.GUID
	// Types is the type of every descriptor, in order.
	Types []etw.DescriptorType
	// Metadata is the event metadata descriptor.
	Metadata []byte
	// Data holds the user data descriptors, one per field.
	Data [][]byte
}

func NewBackend() *Backend {
	return &Backend{regs: make(map[etw.RegHandle]*Registration)}
}

func (b *Backend) Register(name string, id guid.GUID, cb etw.EnableCallback) (etw.RegHandle, error) {
	if b.RegisterErr != nil {
		return 0, b.RegisterErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.regs[b.next] = &Registration{Name: name, ID: id, cb: cb}
	return b.next, nil
}

func (b *Backend) SetTraits(h etw.RegHandle, traits []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.regs[h]
	if !ok {
		return xerrors.Errorf("etwtest: unknown handle %d", h)
	}
	r.Traits = append([]byte(nil), traits...)
	return b.TraitsErr
}

func (b *Backend) Unregister(h etw.RegHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.regs[h]
	if !ok || r.Unregistered {
		return xerrors.Errorf("etwtest: unknown handle %d", h)
	}
	r.Unregistered = true
	return nil
}

func (b *Backend) Write(h etw.RegHandle, desc *etw.EventDescriptor, activityID, relatedActivityID *guid.GUID, data []etw.DataDescriptor) error {
	b.mu.Lock()
	r, ok := b.regs[h]
	if !ok || r.Unregistered {
		b.mu.Unlock()
		return xerrors.Errorf("etwtest: write to unknown handle %d", h)
	}
	ev := Event{
		Provider:          r.ID,
		Descriptor:        *desc,
		ActivityID:        copyGUID(activityID),
		RelatedActivityID: copyGUID(relatedActivityID),
	}
	for _, d := range data {
		ev.Types = append(ev.Types, d.Type)
		buf := append([]byte{}, d.Bytes()...)
		switch d.Type {
		case etw.DescriptorTypeEventMetadata:
			ev.Metadata = buf
		case etw.DescriptorTypeUserData:
			ev.Data = append(ev.Data, buf)
		}
	}
	b.events = append(b.events, ev)
	b.mu.Unlock()
	return b.WriteErr
}

func copyGUID(g *guid.GUID) *guid.GUID {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// Enable enables every live provider with the given ID, as a session
// controller would.
func (b *Backend) Enable(id guid.GUID, level etw.Level, matchAny, matchAll uint64) {
	for _, cb := range b.callbacks(id) {
		cb(id, etw.ProviderStateEnable, level, matchAny, matchAll)
	}
}

// Disable disables every live provider with the given ID.
func (b *Backend) Disable(id guid.GUID) {
	for _, cb := range b.callbacks(id) {
		cb(id, etw.ProviderStateDisable, 0, 0, 0)
	}
}

func (b *Backend) callbacks(id guid.GUID) []etw.EnableCallback {
	b.mu.Lock()
	defer b.mu.Unlock()
	var cbs []etw.EnableCallback
	for _, r := range b.regs {
		if r.ID == id && !r.Unregistered && r.cb != nil {
			cbs = append(cbs, r.cb)
		}
	}
	return cbs
}

// Registrations returns a copy of every registration, live or not, in the
// order they were made.
func (b *Backend) Registrations() []Registration {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Registration, 0, len(b.regs))
	for h := etw.RegHandle(1); h <= b.next; h++ {
		if r, ok := b.regs[h]; ok {
			c := *r
			c.cb = nil
			out = append(out, c)
		}
	}
	return out
}

// Events returns the events written so far.
func (b *Backend) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Reset forgets the events written so far.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
