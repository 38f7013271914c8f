// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ezap provides an implementation of zapcore.Core that writes ETW
// events.
package ezap

import (
	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/etw/log-adapters/internal"
	"golang.org/x/exp/etw/tracelog"
)

type core struct {
	logger *tracelog.Logger
	fields []interface{} // rendered key/value pairs from With
}

var _ zapcore.Core = (*core)(nil)

func NewCore(l *tracelog.Logger) zapcore.Core {
	return &core{logger: l}
}

// Level returns the level entries at l are written at.
func Level(l zapcore.Level) tracelog.Level {
	switch {
	case l >= zapcore.ErrorLevel:
		return tracelog.LevelError
	case l == zapcore.WarnLevel:
		return tracelog.LevelWarn
	case l == zapcore.InfoLevel:
		return tracelog.LevelInfo
	}
	return tracelog.LevelDebug
}

func (c *core) Enabled(level zapcore.Level) bool {
	return c.logger.Enabled(Level(level))
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	c2 := *c
	c2.fields = addFields(c.fields, fields)
	return &c2
}

func (c *core) Write(e zapcore.Entry, fs []zapcore.Field) error {
	kvs := addFields(c.fields, fs)
	if e.LoggerName != "" {
		kvs = append([]interface{}{"logger", e.LoggerName}, kvs...)
	}
	if e.Stack != "" {
		kvs = append(kvs, "stack", e.Stack)
	}
	var modulePath, file string
	var line uint32
	if e.Caller.Defined {
		modulePath = tracelog.PackagePath(e.Caller.Function)
		file, line = e.Caller.File, uint32(e.Caller.Line)
	}
	return c.logger.Log(Level(e.Level), nil, modulePath, file, line, internal.Message(e.Message, kvs...))
}

func (c *core) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *core) Sync() error { return nil }

// addFields returns a new slice with kvs followed by the key/value pairs
// of fields, in order.
func addFields(kvs []interface{}, fields []zapcore.Field) []interface{} {
	out := make([]interface{}, len(kvs), len(kvs)+2*len(fields))
	copy(out, kvs)
	for _, f := range fields {
		// Each field is encoded on its own so that their order is kept.
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		out = append(out, internal.SortedKeyvals(enc.Fields)...)
	}
	return out
}
