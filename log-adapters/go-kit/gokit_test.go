// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package egokit

import (
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/exp/etw/log-adapters/internal"
)

func Test(t *testing.T) {
	l, b := internal.NewTestLogger(t)
	logger := NewLogger(l)
	logger.Log("msg", "mess", "name", "n/m", "traceID", 17, "resource", "R")
	level.Warn(logger).Log("msg", "slow", "took", "3s")
	level.Debug(logger).Log("odd")

	want := []internal.Record{
		{Level: "info", Message: "mess name=n/m traceID=17 resource=R"},
		{Level: "warn", Message: "slow took=3s"},
		{Level: "debug", Message: "odd=(MISSING)"},
	}
	if diff := cmp.Diff(want, internal.Records(t, b)); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestCaller(t *testing.T) {
	l, b := internal.NewTestLogger(t)
	logger := log.With(NewLogger(l), "caller", log.DefaultCaller)
	level.Error(logger).Log("msg", "failed")

	got := internal.Records(t, b)
	want := []internal.Record{{Level: "error", Message: "failed"}}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(internal.Record{}, "File", "Line")); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if len(got) == 1 && (!strings.HasSuffix(got[0].File, "gokit_test.go") || got[0].Line == 0) {
		t.Errorf("caller = %s:%d", got[0].File, got[0].Line)
	}
}

func TestSplitCaller(t *testing.T) {
	for _, test := range []struct {
		in   string
		file string
		line uint32
		ok   bool
	}{
		{"main.go:12", "main.go", 12, true},
		{`C:\src\main.go:7`, `C:\src\main.go`, 7, true},
		{"nocolon", "", 0, false},
		{"main.go:x", "", 0, false},
	} {
		file, line, ok := splitCaller(test.in)
		if file != test.file || line != test.line || ok != test.ok {
			t.Errorf("splitCaller(%q) = %q, %d, %t", test.in, file, line, ok)
		}
	}
}
