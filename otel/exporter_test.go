// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package otel

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/etw"
	"golang.org/x/exp/etw/etwtest"
	"golang.org/x/exp/etw/guid"
)

var (
	traceID  = trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	spanID   = trace.SpanID{0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8}
	parentID = trace.SpanID{0xb1, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6, 0xb7, 0xb8}
	start    = time.Date(2022, 5, 6, 7, 8, 9, 0, time.UTC)
)

func newTestExporter(t *testing.T) (*Exporter, *etwtest.Backend) {
	t.Helper()
	b := etwtest.NewBackend()
	e, err := New("TestTracer", etw.WithBackend(b))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Shutdown(context.Background()) })
	b.Enable(e.Provider().ID(), etw.LevelVerbose, 0, 0)
	return e, b
}

func stub(status codes.Code) tracetest.SpanStub {
	return tracetest.SpanStub{
		Name: "query",
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  spanID,
		}),
		Parent: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  parentID,
		}),
		SpanKind:   trace.SpanKindServer,
		StartTime:  start,
		EndTime:    start.Add(1500 * time.Millisecond),
		Attributes: []attribute.KeyValue{attribute.String("db", "users"), attribute.Int("rows", 3)},
		Events: []sdktrace.Event{
			{Name: "retry", Time: start.Add(time.Second)},
		},
		Status:        sdktrace.Status{Code: status, Description: "desc"},
		DroppedEvents: 2,
	}
}

func TestExportSpans(t *testing.T) {
	e, b := newTestExporter(t)
	if err := e.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub(codes.Ok).Snapshot()}); err != nil {
		t.Fatal(err)
	}
	events := b.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	d, err := ev.Decode()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		fieldName:              "query",
		fieldTraceID:           "0102030405060708090a0b0c0d0e0f10",
		fieldSpanID:            "a1a2a3a4a5a6a7a8",
		fieldParentSpanID:      "b1b2b3b4b5b6b7b8",
		fieldKind:              "server",
		fieldStartTime:         start,
		fieldEndTime:           start.Add(1500 * time.Millisecond),
		fieldDuration:          int64(1500 * time.Millisecond),
		fieldStatusCode:        "Ok",
		fieldStatusDescription: "desc",
		fieldDroppedAttributes: uint32(0),
		fieldDroppedEvents:     uint32(2),
		fieldDroppedLinks:      uint32(0),
		fieldAttributes:        `{"db":"users","rows":3}`,
		fieldEvents:            `[{"name":"retry","time":"2022-05-06T07:08:10Z"}]`,
	}
	if d.Name != eventName {
		t.Errorf("event name = %q, want %q", d.Name, eventName)
	}
	if diff := cmp.Diff(want, d.Map()); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if ev.Descriptor.Level != etw.LevelInfo {
		t.Errorf("level = %v, want Info", ev.Descriptor.Level)
	}
	wantActivity := guid.FromArray([16]byte{1, 2, 3, 4, 5, 6, 7, 8, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8})
	if ev.ActivityID == nil || *ev.ActivityID != wantActivity {
		t.Errorf("activity = %v, want %v", ev.ActivityID, wantActivity)
	}
	wantRelated := ActivityID(traceID, parentID)
	if ev.RelatedActivityID == nil || *ev.RelatedActivityID != wantRelated {
		t.Errorf("related activity = %v, want %v", ev.RelatedActivityID, wantRelated)
	}
}

func TestErrorSpan(t *testing.T) {
	e, b := newTestExporter(t)
	root := stub(codes.Error)
	root.Parent = trace.SpanContext{}
	if err := e.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{root.Snapshot()}); err != nil {
		t.Fatal(err)
	}
	ev := b.Events()[0]
	if ev.Descriptor.Level != etw.LevelError {
		t.Errorf("level = %v, want Error", ev.Descriptor.Level)
	}
	if ev.RelatedActivityID != nil {
		t.Errorf("root span has related activity %v", ev.RelatedActivityID)
	}
	d, err := ev.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Value(fieldParentSpanID); got != "" {
		t.Errorf("parent_span_id = %q, want empty", got)
	}
}

func TestExportErrors(t *testing.T) {
	e, b := newTestExporter(t)
	b.WriteErr = syscall.Errno(8)
	spans := tracetest.SpanStubs{stub(codes.Ok), stub(codes.Unset)}.Snapshots()
	err := e.ExportSpans(context.Background(), spans)
	var se *etw.SubmitError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *SubmitError", err)
	}
	if n := len(b.Events()); n != 2 {
		t.Errorf("got %d writes, want 2: a failed write must not stop the export", n)
	}
}

func TestTracerProvider(t *testing.T) {
	e, b := newTestExporter(t)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(e))
	ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
	_, child := tp.Tracer("test").Start(ctx, "child")
	child.End()
	parent.End()

	events := b.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if *events[0].RelatedActivityID != *events[1].ActivityID {
		t.Error("child span is not related to its parent")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !b.Registrations()[0].Unregistered {
		t.Error("Shutdown did not unregister the provider")
	}
	if err := e.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub(codes.Ok).Snapshot()}); err != nil {
		t.Errorf("export after Shutdown: %v", err)
	}
	if n := len(b.Events()); n != 2 {
		t.Errorf("export after Shutdown wrote %d events", n-2)
	}
}

func TestDisabled(t *testing.T) {
	e, b := newTestExporter(t)
	b.Disable(e.Provider().ID())
	if err := e.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub(codes.Ok).Snapshot()}); err != nil {
		t.Fatal(err)
	}
	if n := len(b.Events()); n != 0 {
		t.Errorf("got %d events, want 0", n)
	}
}
