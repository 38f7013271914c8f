// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ezerolog provides a zerolog writer that writes ETW events.
//
//	log := zerolog.New(ezerolog.NewWriter(logger)).With().Caller().Logger()
//
// Each JSON record is decoded back into its fields. The message, level,
// timestamp and caller fields are taken out; the rest follow the message
// in logfmt, in key order.
package ezerolog

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"golang.org/x/exp/etw/log-adapters/internal"
	"golang.org/x/exp/etw/tracelog"
	"golang.org/x/xerrors"
)

var json = jsoniter.Config{UseNumber: true}.Froze()

type writer struct {
	logger *tracelog.Logger
}

var _ zerolog.LevelWriter = (*writer)(nil)

func NewWriter(l *tracelog.Logger) zerolog.LevelWriter {
	return &writer{logger: l}
}

// Level returns the level records at l are written at. Records without a
// level are written at the info level.
func Level(l zerolog.Level) tracelog.Level {
	switch l {
	case zerolog.PanicLevel, zerolog.FatalLevel, zerolog.ErrorLevel:
		return tracelog.LevelError
	case zerolog.WarnLevel:
		return tracelog.LevelWarn
	case zerolog.DebugLevel:
		return tracelog.LevelDebug
	case zerolog.TraceLevel:
		return tracelog.LevelTrace
	}
	return tracelog.LevelInfo
}

func (w *writer) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *writer) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	level := Level(l)
	if !w.logger.Enabled(level) {
		return len(p), nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return 0, xerrors.Errorf("ezerolog: decoding record: %w", err)
	}
	msg, _ := fields[zerolog.MessageFieldName].(string)
	delete(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.LevelFieldName)
	delete(fields, zerolog.TimestampFieldName)

	var file string
	var line uint32
	if c, ok := fields[zerolog.CallerFieldName].(string); ok {
		if i := strings.LastIndexByte(c, ':'); i >= 0 {
			if n, err := strconv.ParseUint(c[i+1:], 10, 32); err == nil {
				file, line = c[:i], uint32(n)
				delete(fields, zerolog.CallerFieldName)
			}
		}
	}
	if err := w.logger.Log(level, nil, "", file, line, internal.Message(msg, internal.SortedKeyvals(fields)...)); err != nil {
		return 0, err
	}
	return len(p), nil
}
