// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elogr is a logr implementation that writes ETW events.
package elogr

import (
	"github.com/go-logr/logr"
	"golang.org/x/exp/etw/log-adapters/internal"
	"golang.org/x/exp/etw/tracelog"
)

type sink struct {
	logger    *tracelog.Logger
	nameSep   string
	name      string
	values    []interface{}
	callDepth int
}

var (
	_ logr.LogSink          = (*sink)(nil)
	_ logr.CallDepthLogSink = (*sink)(nil)
)

// NewLogger returns a logr.Logger writing to l. Successive names given to
// WithName are joined with nameSep.
func NewLogger(l *tracelog.Logger, nameSep string) logr.Logger {
	return logr.New(&sink{
		logger:  l,
		nameSep: nameSep,
	})
}

// Level returns the level messages at verbosity v are written at. V(0) is
// info, V(1) debug and anything more verbose is trace.
func Level(v int) tracelog.Level {
	switch {
	case v <= 0:
		return tracelog.LevelInfo
	case v == 1:
		return tracelog.LevelDebug
	}
	return tracelog.LevelTrace
}

func (s *sink) Init(info logr.RuntimeInfo) {
	s.callDepth += info.CallDepth
}

func (s *sink) Enabled(level int) bool {
	return s.logger.Enabled(Level(level))
}

func (s *sink) Info(level int, msg string, keysAndValues ...interface{}) {
	s.deliver(Level(level), msg, nil, keysAndValues)
}

// Error writes at the error level, with err under the key "error".
func (s *sink) Error(err error, msg string, keysAndValues ...interface{}) {
	if !s.logger.Enabled(tracelog.LevelError) {
		return
	}
	s.deliver(tracelog.LevelError, msg, err, keysAndValues)
}

func (s *sink) deliver(level tracelog.Level, msg string, err error, keysAndValues []interface{}) {
	// Skip deliver, Info or Error and the logr.Logger method.
	modulePath, file, line := tracelog.Caller(2 + s.callDepth)
	kvs := make([]interface{}, 0, 2+len(s.values)+len(keysAndValues)+2)
	if s.name != "" {
		kvs = append(kvs, "logger", s.name)
	}
	kvs = append(kvs, s.values...)
	kvs = append(kvs, keysAndValues...)
	if err != nil {
		kvs = append(kvs, "error", err)
	}
	s.logger.Log(level, nil, modulePath, file, line, internal.Message(msg, kvs...))
}

func (s *sink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	s2 := *s
	s2.values = append(append([]interface{}(nil), s.values...), keysAndValues...)
	return &s2
}

func (s *sink) WithName(name string) logr.LogSink {
	s2 := *s
	if s.name == "" {
		s2.name = name
	} else {
		s2.name = s.name + s.nameSep + name
	}
	return &s2
}

func (s *sink) WithCallDepth(depth int) logr.LogSink {
	s2 := *s
	s2.callDepth += depth
	return &s2
}
