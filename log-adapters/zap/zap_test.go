// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ezap

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"golang.org/x/exp/etw/log-adapters/internal"
)

const pkg = "golang.org/x/exp/etw/log-adapters/zap"

func Test(t *testing.T) {
	l, b := internal.NewTestLogger(t)
	log := zap.New(NewCore(l), zap.Fields(zap.Int("traceID", 17), zap.String("resource", "R")), zap.AddCaller())
	log = log.Named("n/m")
	log.Info("mess", zap.Float64("pi", 3.14))
	log.Error("failed", zap.Error(errors.New("boom")))
	log.Debug("details", zap.Bool("ok", true))

	want := []internal.Record{
		{Level: "info", ModulePath: pkg, Message: "mess logger=n/m traceID=17 resource=R pi=3.14"},
		{Level: "error", ModulePath: pkg, Message: "failed logger=n/m traceID=17 resource=R error=boom"},
		{Level: "debug", ModulePath: pkg, Message: "details logger=n/m traceID=17 resource=R ok=true"},
	}
	got := internal.Records(t, b)
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(internal.Record{}, "File", "Line")); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	for _, r := range got {
		if !strings.HasSuffix(r.File, "zap_test.go") || r.Line == 0 {
			t.Errorf("caller = %s:%d", r.File, r.Line)
		}
	}
}

func TestEnabled(t *testing.T) {
	l, b := internal.NewTestLogger(t)
	log := zap.New(NewCore(l))
	b.Disable(l.Provider().ID())
	log.Info("dropped")
	if n := len(b.Events()); n != 0 {
		t.Errorf("disabled provider got %d events", n)
	}
}
