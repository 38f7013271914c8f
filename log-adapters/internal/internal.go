// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package internal holds what the log adapters share: rendering of
// key/value pairs into the message, and test helpers.
package internal

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/go-logfmt/logfmt"
	"golang.org/x/exp/etw"
	"golang.org/x/exp/etw/etwtest"
	"golang.org/x/exp/etw/tracelog"
)

// Message returns msg followed by keyvals encoded as logfmt. A value logfmt
// cannot encode is written with %+v, and a missing final value as
// "(MISSING)".
func Message(msg string, keyvals ...interface{}) string {
	if len(keyvals) == 0 {
		return msg
	}
	buf := &bytes.Buffer{}
	buf.WriteString(msg)
	if msg != "" {
		buf.WriteByte(' ')
	}
	start := buf.Len()
	enc := logfmt.NewEncoder(buf)
	for i := 0; i < len(keyvals); i += 2 {
		k := keyvals[i]
		var v interface{} = "(MISSING)"
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		err := enc.EncodeKeyval(k, v)
		if err == logfmt.ErrUnsupportedValueType {
			enc.EncodeKeyval(k, fmt.Sprintf("%+v", v))
		}
	}
	if buf.Len() == start {
		return msg
	}
	return buf.String()
}

// SortedKeyvals flattens m into key/value pairs ordered by key.
func SortedKeyvals(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		kvs = append(kvs, k, m[k])
	}
	return kvs
}

// Record is a decoded log event.
type Record struct {
	Level      string
	ModulePath string
	File       string
	Line       uint32
	Message    string
}

// NewTestLogger returns a Logger writing to an in-memory backend, enabled
// for every level.
func NewTestLogger(t testing.TB) (*tracelog.Logger, *etwtest.Backend) {
	t.Helper()
	b := etwtest.NewBackend()
	l, err := tracelog.New(tracelog.WithProviderOpts(etw.WithBackend(b)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	b.Enable(tracelog.DefaultProviderID, etw.LevelVerbose, 0, 0)
	return l, b
}

// Records decodes the events written to b.
func Records(t testing.TB, b *etwtest.Backend) []Record {
	t.Helper()
	var out []Record
	for _, ev := range b.Events() {
		d, err := ev.Decode()
		if err != nil {
			t.Fatal(err)
		}
		r := Record{Level: d.Name}
		r.ModulePath, _ = d.Value("module_path").(string)
		r.File, _ = d.Value("file").(string)
		r.Line, _ = d.Value("line").(uint32)
		r.Message, _ = d.Value("message").(string)
		out = append(out, r)
	}
	return out
}
