// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package otel provides an OpenTelemetry span exporter that writes each
// finished span as an ETW event.
//
// Field names follow the OpenTelemetry mapping to non-OTLP formats. The
// activity ID of the event is built from the trace and span IDs, and the
// related activity ID from the parent span, so consumers can rebuild the
// span tree.
package otel

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/exp/etw"
	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

const (
	fieldName         = "name"
	fieldTraceID      = "trace_id"
	fieldSpanID       = "span_id"
	fieldParentSpanID = "parent_span_id"
	fieldKind         = "kind"

	fieldStartTime = "start_time"
	fieldEndTime   = "end_time"
	fieldDuration  = "duration" // nanoseconds

	fieldStatusCode        = "otel.status_code"
	fieldStatusDescription = "otel.status_description"

	fieldDroppedAttributes = "otel.dropped_attributes_count"
	fieldDroppedEvents     = "otel.dropped_events_count"
	fieldDroppedLinks      = "otel.dropped_links_count"

	fieldAttributes = "attributes"
	fieldEvents     = "events"

	eventName = "Span"
)

func spanEvent(level etw.Level) *etw.Event {
	return etw.MustEvent(eventName,
		etw.WithLevel(level),
		etw.WithOpcode(etw.OpcodeInfo),
		etw.WithFields(
			etw.StringField(fieldName),
			etw.StringField(fieldTraceID),
			etw.StringField(fieldSpanID),
			etw.StringField(fieldParentSpanID),
			etw.StringField(fieldKind),
			etw.TimeField(fieldStartTime),
			etw.TimeField(fieldEndTime),
			etw.Int64Field(fieldDuration),
			etw.StringField(fieldStatusCode),
			etw.StringField(fieldStatusDescription),
			etw.Uint32Field(fieldDroppedAttributes),
			etw.Uint32Field(fieldDroppedEvents),
			etw.Uint32Field(fieldDroppedLinks),
			etw.JSONField(fieldAttributes),
			etw.JSONField(fieldEvents),
		))
}

var (
	// Spans with an error status are written at the error level.
	okSpan    = spanEvent(etw.LevelInfo)
	errorSpan = spanEvent(etw.LevelError)
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exporter is a sdktrace.SpanExporter writing to a provider.
type Exporter struct {
	provider *etw.Provider
	owned    bool
	stopped  atomic.Bool
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)

// NewExporter returns an Exporter writing to p. The caller keeps ownership
// of p.
func NewExporter(p *etw.Provider) *Exporter {
	return &Exporter{provider: p}
}

// New registers a provider and returns an Exporter writing to it. Shutdown
// unregisters the provider.
func New(name string, opts ...etw.ProviderOpt) (*Exporter, error) {
	p, err := etw.NewProvider(name, opts...)
	if err != nil {
		return nil, xerrors.Errorf("otel: %w", err)
	}
	return &Exporter{provider: p, owned: true}, nil
}

// Provider returns the provider e writes to.
func (e *Exporter) Provider() *etw.Provider { return e.provider }

// ExportSpans writes one event per span. It keeps going after a failed
// write and returns every error.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() {
		return nil
	}
	var err error
	for _, s := range spans {
		if cerr := ctx.Err(); cerr != nil {
			return multierr.Append(err, cerr)
		}
		err = multierr.Append(err, e.export(s))
	}
	return err
}

func (e *Exporter) export(s sdktrace.ReadOnlySpan) error {
	ev := okSpan
	if s.Status().Code == codes.Error {
		ev = errorSpan
	}
	if !e.provider.IsEnabledForLevelAndKeywords(ev.Level(), ev.Keyword()) {
		return nil
	}
	attrs, err := json.Marshal(attributeMap(s.Attributes()))
	if err != nil {
		return xerrors.Errorf("otel: span %q attributes: %w", s.Name(), err)
	}
	events, err := json.Marshal(spanEvents(s.Events()))
	if err != nil {
		return xerrors.Errorf("otel: span %q events: %w", s.Name(), err)
	}

	sc := s.SpanContext()
	var parentID string
	var related *guid.GUID
	if p := s.Parent(); p.IsValid() {
		parentID = p.SpanID().String()
		id := ActivityID(p.TraceID(), p.SpanID())
		related = &id
	}
	activity := ActivityID(sc.TraceID(), sc.SpanID())

	return e.provider.EmitTransfer(ev, &activity, related,
		etw.String(s.Name()),
		etw.String(sc.TraceID().String()),
		etw.String(sc.SpanID().String()),
		etw.String(parentID),
		etw.String(s.SpanKind().String()),
		etw.Time(s.StartTime()),
		etw.Time(s.EndTime()),
		etw.Int64(int64(s.EndTime().Sub(s.StartTime()))),
		etw.String(s.Status().Code.String()),
		etw.String(s.Status().Description),
		etw.Uint32(uint32(s.DroppedAttributes())),
		etw.Uint32(uint32(s.DroppedEvents())),
		etw.Uint32(uint32(s.DroppedLinks())),
		etw.String(string(attrs)),
		etw.String(string(events)),
	)
}

// Shutdown stops the exporter and unregisters the provider if New
// registered it.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.stopped.Swap(true) || !e.owned {
		return nil
	}
	return e.provider.Close()
}

// ActivityID returns the activity ID of a span: the first eight bytes of
// its trace ID followed by its span ID.
func ActivityID(traceID trace.TraceID, spanID trace.SpanID) guid.GUID {
	var b [16]byte
	copy(b[:8], traceID[:8])
	copy(b[8:], spanID[:])
	return guid.FromArray(b)
}

func attributeMap(kvs []attribute.KeyValue) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

type spanEventJSON struct {
	Name       string                 `json:"name"`
	Time       time.Time              `json:"time"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func spanEvents(events []sdktrace.Event) []spanEventJSON {
	out := make([]spanEventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, spanEventJSON{
			Name:       ev.Name,
			Time:       ev.Time.UTC(),
			Attributes: attributeMap(ev.Attributes),
		})
	}
	return out
}
