// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

// Event is a declared event: its name, its fields in order, and the
// descriptor it is written with. Declare each event once, typically in a
// package level variable, and reuse it for every write. Its metadata is
// encoded when it is declared.
type Event struct {
	name     string
	fields   []Field
	tags     uint32
	desc     EventDescriptor
	metadata []byte
}

// EventOpt configures an Event.
type EventOpt func(*Event)

// WithLevel sets the level of the event. The default is LevelVerbose.
func WithLevel(l Level) EventOpt {
	return func(e *Event) { e.desc.Level = l }
}

// WithKeyword sets the keyword mask of the event. Sessions can filter on
// keywords; an event with no keywords is seen by every session.
func WithKeyword(k uint64) EventOpt {
	return func(e *Event) { e.desc.Keyword = k }
}

func WithOpcode(o Opcode) EventOpt {
	return func(e *Event) { e.desc.Opcode = o }
}

func WithChannel(c Channel) EventOpt {
	return func(e *Event) { e.desc.Channel = c }
}

func WithEventID(id uint16, version uint8) EventOpt {
	return func(e *Event) {
		e.desc.ID = id
		e.desc.Version = version
	}
}

func WithTask(task uint16) EventOpt {
	return func(e *Event) { e.desc.Task = task }
}

// WithTags sets 28 bits of user-defined tags. They are not written to the
// trace; bridges may use them to route events.
func WithTags(tags uint32) EventOpt {
	return func(e *Event) { e.tags = tags & 0x0fffffff }
}

// WithFields appends fields to the event.
func WithFields(fields ...Field) EventOpt {
	return func(e *Event) { e.fields = append(e.fields, fields...) }
}

// NewEvent declares an event and encodes its metadata.
func NewEvent(name string, opts ...EventOpt) (*Event, error) {
	e := &Event{
		name: name,
		desc: EventDescriptor{
			Channel: ChannelTraceLogging,
			Level:   LevelVerbose,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.fields = cloneFields(e.fields)
	if err := validateName(name); err != nil {
		return nil, xerrors.Errorf("event: %w", err)
	}
	if err := validateFields(e.fields); err != nil {
		return nil, xerrors.Errorf("event %q: %w", name, err)
	}
	var err error
	if e.metadata, err = encodeEventMetadata(name, e.fields); err != nil {
		return nil, err
	}
	return e, nil
}

// MustEvent is like NewEvent but panics on error.
func MustEvent(name string, opts ...EventOpt) *Event {
	e, err := NewEvent(name, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Event) Name() string { return e.name }

// Fields returns the declared fields. The result must not be modified.
func (e *Event) Fields() []Field { return e.fields }

func (e *Event) Level() Level    { return e.desc.Level }
func (e *Event) Keyword() uint64 { return e.desc.Keyword }
func (e *Event) Opcode() Opcode  { return e.desc.Opcode }
func (e *Event) Tags() uint32    { return e.tags }

// Descriptor returns the EVENT_DESCRIPTOR the event is written with.
func (e *Event) Descriptor() EventDescriptor { return e.desc }

// Metadata returns the encoded schema of the event. The result must not be
// modified.
func (e *Event) Metadata() []byte { return e.metadata }

// preallocateFields is the number of fields whose offsets are tracked without
// allocating.
const preallocateFields = 15

// Emit writes ev with the given values, one per declared field, if a session
// is listening at ev's level and keywords. It does nothing and returns nil
// otherwise. activityID may be nil.
//
// Errors from the tracing subsystem are returned as *SubmitError and may be
// ignored; Emit never panics because of them.
func (p *Provider) Emit(ev *Event, activityID *guid.GUID, values ...Value) error {
	return p.EmitTransfer(ev, activityID, nil, values...)
}

// EmitTransfer is like Emit but also relates the event's activity to
// relatedActivityID, typically the activity that started it.
func (p *Provider) EmitTransfer(ev *Event, activityID, relatedActivityID *guid.GUID, values ...Value) error {
	if !p.IsEnabledForLevelAndKeywords(ev.desc.Level, ev.desc.Keyword) {
		return nil
	}
	var endsBuf [preallocateFields]int
	data, ends, err := ev.encodeValues(make([]byte, 0, 16*len(values)), endsBuf[:0], values)
	if err != nil {
		return err
	}
	return p.writeEvent(ev, activityID, relatedActivityID, data, ends)
}
