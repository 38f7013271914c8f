// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package egokit provides a go-kit logger that writes ETW events.
//
// The keys "msg" or "message", "level" and "caller" are taken out of each
// record; the rest follow the message in logfmt. Records without a level
// are written at the info level.
package egokit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/exp/etw/log-adapters/internal"
	"golang.org/x/exp/etw/tracelog"
)

type logger struct {
	logger *tracelog.Logger
}

func NewLogger(l *tracelog.Logger) log.Logger {
	return &logger{logger: l}
}

// Level returns the level a go-kit level value is written at.
func Level(v interface{}) (tracelog.Level, bool) {
	var s string
	switch v := v.(type) {
	case level.Value:
		s = v.String()
	case string:
		s = v
	default:
		return 0, false
	}
	switch s {
	case "error":
		return tracelog.LevelError, true
	case "warn":
		return tracelog.LevelWarn, true
	case "info":
		return tracelog.LevelInfo, true
	case "debug":
		return tracelog.LevelDebug, true
	}
	return 0, false
}

func (l *logger) Log(keyvals ...interface{}) error {
	lvl := tracelog.LevelInfo
	var msg, file string
	var line uint32
	rest := make([]interface{}, 0, len(keyvals))
	for i := 0; i < len(keyvals); i += 2 {
		key := keyvals[i]
		var value interface{} = log.ErrMissingValue
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}
		switch key {
		case "msg", "message":
			msg = fmt.Sprint(value)
			continue
		case level.Key():
			if lv, ok := Level(value); ok {
				lvl = lv
				continue
			}
		case "caller":
			if f, n, ok := splitCaller(value); ok {
				file, line = f, n
				continue
			}
		}
		rest = append(rest, key, value)
	}
	if !l.logger.Enabled(lvl) {
		return nil
	}
	return l.logger.Log(lvl, nil, "", file, line, internal.Message(msg, rest...))
}

// splitCaller parses a "file:line" value such as log.DefaultCaller
// produces.
func splitCaller(v interface{}) (string, uint32, bool) {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return "", 0, false
	}
	return s[:i], uint32(n), true
}
