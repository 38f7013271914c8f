// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ezerolog

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
	"golang.org/x/exp/etw/log-adapters/internal"
)

func Test(t *testing.T) {
	l, b := internal.NewTestLogger(t)
	log := zerolog.New(NewWriter(l)).With().Timestamp().Str("resource", "R").Logger()
	log.Info().Int("traceID", 17).Float64("pi", 3.5).Msg("mess")
	log.Error().Err(errors.New("boom")).Msg("failed")
	log.Warn().Bool("retry", true).Msg("")
	log.Log().Msg("plain")

	want := []internal.Record{
		{Level: "info", Message: "mess pi=3.5 resource=R traceID=17"},
		{Level: "error", Message: "failed error=boom resource=R"},
		{Level: "warn", Message: "resource=R retry=true"},
		{Level: "info", Message: "plain resource=R"},
	}
	if diff := cmp.Diff(want, internal.Records(t, b)); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestCaller(t *testing.T) {
	l, b := internal.NewTestLogger(t)
	log := zerolog.New(NewWriter(l)).With().Caller().Logger()
	log.Debug().Msg("here")

	got := internal.Records(t, b)
	want := []internal.Record{{Level: "debug", Message: "here"}}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(internal.Record{}, "File", "Line")); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if len(got) == 1 && (!strings.HasSuffix(got[0].File, "zerolog_test.go") || got[0].Line == 0) {
		t.Errorf("caller = %s:%d", got[0].File, got[0].Line)
	}
}

func TestBadRecord(t *testing.T) {
	l, _ := internal.NewTestLogger(t)
	w := NewWriter(l)
	if _, err := w.WriteLevel(zerolog.InfoLevel, []byte("not json")); err == nil {
		t.Error("no error for a malformed record")
	}
}
