// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracelog

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/etw"
	"golang.org/x/exp/etw/etwtest"
	"golang.org/x/exp/etw/guid"
)

func newTestLogger(t *testing.T, level etw.Level) (*Logger, *etwtest.Backend) {
	t.Helper()
	b := etwtest.NewBackend()
	l, err := New(WithProviderOpts(etw.WithBackend(b)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	b.Enable(DefaultProviderID, level, 0, 0)
	return l, b
}

type record struct {
	Name   string
	Level  etw.Level
	Values []interface{}
}

func records(t *testing.T, b *etwtest.Backend) []record {
	t.Helper()
	var out []record
	for _, ev := range b.Events() {
		d, err := ev.Decode()
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, record{d.Name, ev.Descriptor.Level, d.Values})
	}
	return out
}

func TestLogger(t *testing.T) {
	l, b := newTestLogger(t, etw.LevelVerbose)
	if got := l.Provider().ID(); got != DefaultProviderID {
		t.Errorf("provider ID = %v, want %v", got, DefaultProviderID)
	}
	if got := l.Provider().Name(); got != DefaultProviderName {
		t.Errorf("provider name = %q, want %q", got, DefaultProviderName)
	}
	l.Error(nil, "app", "a.go", 1, "e")
	l.Warn(nil, "app", "a.go", 2, "w")
	l.Info(nil, "app", "a.go", 3, "i")
	l.Debug(nil, "app", "a.go", 4, "d")
	l.Trace(nil, "app", "a.go", 5, "t")
	want := []record{
		{"error", etw.LevelError, []interface{}{"app", "a.go", uint32(1), "e"}},
		{"warn", etw.LevelWarning, []interface{}{"app", "a.go", uint32(2), "w"}},
		{"info", etw.LevelInfo, []interface{}{"app", "a.go", uint32(3), "i"}},
		{"debug", etw.LevelVerbose, []interface{}{"app", "a.go", uint32(4), "d"}},
		{"trace", etw.LevelVerbose, []interface{}{"app", "a.go", uint32(5), "t"}},
	}
	if diff := cmp.Diff(want, records(t, b)); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestPrivacyFlags(t *testing.T) {
	l, b := newTestLogger(t, etw.LevelVerbose)
	if !l.LogModulePath() || !l.LogFilePath() {
		t.Fatal("module and file paths should be logged by default")
	}
	l.SetLogModulePath(false)
	l.Info(nil, "app", "a.go", 3, "no module")
	l.SetLogModulePath(true)
	l.SetLogFilePath(false)
	l.Info(nil, "app", "a.go", 3, "no file")
	want := []record{
		{"info", etw.LevelInfo, []interface{}{"", "a.go", uint32(3), "no module"}},
		{"info", etw.LevelInfo, []interface{}{"app", "", uint32(0), "no file"}},
	}
	if diff := cmp.Diff(want, records(t, b)); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestLevelFiltering(t *testing.T) {
	l, b := newTestLogger(t, etw.LevelWarning)
	if l.Enabled(LevelInfo) || !l.Enabled(LevelWarn) {
		t.Error("Enabled does not follow the session level")
	}
	l.Info(nil, "", "", 0, "dropped")
	l.Warn(nil, "", "", 0, "kept")
	if n := len(b.Events()); n != 1 {
		t.Errorf("got %d events, want 1", n)
	}
}

func TestActivity(t *testing.T) {
	l, b := newTestLogger(t, etw.LevelVerbose)
	id := guid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
	l.Log(LevelInfo, &id, "", "", 0, "m")
	events := b.Events()
	if len(events) != 1 || events[0].ActivityID == nil || *events[0].ActivityID != id {
		t.Errorf("activity not written: %+v", events)
	}
}

func TestOwnership(t *testing.T) {
	b := etwtest.NewBackend()
	p, err := etw.NewProvider("Shared", etw.WithBackend(b))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	l, err := New(WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Registrations()[0].Unregistered {
		t.Error("Close unregistered a provider the Logger does not own")
	}

	named, err := New(WithProviderName("Named"), WithProviderOpts(etw.WithBackend(b)))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := named.Provider().ID(), guid.ProviderIDFromName("Named"); got != want {
		t.Errorf("ID = %v, want %v", got, want)
	}
	named.Close()
	if !b.Registrations()[1].Unregistered {
		t.Error("owned provider not unregistered")
	}
}

func TestLevelString(t *testing.T) {
	for l, want := range map[Level]string{
		LevelError: "error",
		LevelTrace: "trace",
		Level(9):   "Level(9)",
	} {
		if got := l.String(); got != want {
			t.Errorf("%d: got %q, want %q", int(l), got, want)
		}
	}
	if Event(Level(42)) != Event(LevelTrace) {
		t.Error("levels past trace are not written as trace")
	}
}

func TestSlogHandler(t *testing.T) {
	l, b := newTestLogger(t, etw.LevelVerbose)
	log := slog.New(NewHandler(l, nil))
	log.Info("hello", "k", 1, slog.Group("g", "a", "b"))
	log.With("x", "y").WithGroup("req").Warn("grouped", "id", 7, "ok", true)
	id := guid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
	log.ErrorContext(ContextWithActivity(context.Background(), id), "failed")

	events := b.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	var got []record
	for _, ev := range events {
		d, err := ev.Decode()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, record{d.Name, ev.Descriptor.Level, []interface{}{d.Value("module_path"), d.Value("message")}})
		file, _ := d.Value("file").(string)
		if !strings.HasSuffix(file, "tracelog_test.go") {
			t.Errorf("file = %q", file)
		}
		if line, _ := d.Value("line").(uint32); line == 0 {
			t.Error("line not recorded")
		}
	}
	const pkg = "golang.org/x/exp/etw/tracelog"
	want := []record{
		{"info", etw.LevelInfo, []interface{}{pkg, "hello k=1 g.a=b"}},
		{"warn", etw.LevelWarning, []interface{}{pkg, "grouped x=y req.id=7 req.ok=true"}},
		{"error", etw.LevelError, []interface{}{pkg, "failed"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if events[2].ActivityID == nil || *events[2].ActivityID != id {
		t.Errorf("activity = %v, want %v", events[2].ActivityID, id)
	}
}

func TestSlogHandlerUnencodable(t *testing.T) {
	type point struct{ X, Y int }
	l, b := newTestLogger(t, etw.LevelVerbose)
	log := slog.New(NewHandler(l, nil))
	log.Info("m", slog.Any("pt", point{1, 2}), slog.String("=", "v"), slog.Duration("d", 1500*time.Millisecond))

	events := b.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	d, err := events[0].Decode()
	if err != nil {
		t.Fatal(err)
	}
	want := `m pt="{X:1 Y:2}" !BADKEY=v d=1.5s`
	if got := d.Value("message"); got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestSlogHandlerLevel(t *testing.T) {
	l, b := newTestLogger(t, etw.LevelInfo)
	h := NewHandler(l, &HandlerOptions{Level: slog.LevelWarn})
	ctx := context.Background()
	for _, test := range []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false}, // provider level
		{slog.LevelInfo, false},  // handler level
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	} {
		if got := h.Enabled(ctx, test.level); got != test.want {
			t.Errorf("Enabled(%v) = %t, want %t", test.level, got, test.want)
		}
	}
	slog.New(h).Info("dropped")
	if n := len(b.Events()); n != 0 {
		t.Errorf("got %d events, want 0", n)
	}
}

func TestFromSlog(t *testing.T) {
	for _, test := range []struct {
		in   slog.Level
		want Level
	}{
		{slog.LevelError + 4, LevelError},
		{slog.LevelError, LevelError},
		{slog.LevelWarn, LevelWarn},
		{slog.LevelInfo + 1, LevelInfo},
		{slog.LevelDebug, LevelDebug},
		{slog.LevelDebug - 1, LevelTrace},
	} {
		if got := FromSlog(test.in); got != test.want {
			t.Errorf("FromSlog(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestPackagePath(t *testing.T) {
	for in, want := range map[string]string{
		"golang.org/x/exp/etw.(*Provider).Emit": "golang.org/x/exp/etw",
		"main.main":                            "main",
		"example.com/a/b.F.func1":              "example.com/a/b",
		"runtime":                              "runtime",
	} {
		if got := PackagePath(in); got != want {
			t.Errorf("PackagePath(%q) = %q, want %q", in, got, want)
		}
	}
}
