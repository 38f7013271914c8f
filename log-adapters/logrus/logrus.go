// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elogrus provides a logrus Hook that writes ETW events.
// To use for the global logger:
//
//	logrus.AddHook(elogrus.NewHook(logger))
//
// and for a Logger instance:
//
//	log.AddHook(elogrus.NewHook(logger))
//
// Set the logger's ReportCaller to record source positions.
package elogrus

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/etw/log-adapters/internal"
	"golang.org/x/exp/etw/tracelog"
)

type hook struct {
	logger *tracelog.Logger
}

func NewHook(l *tracelog.Logger) logrus.Hook {
	return &hook{logger: l}
}

var _ logrus.Hook = (*hook)(nil)

// Level returns the level entries at l are written at.
func Level(l logrus.Level) tracelog.Level {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return tracelog.LevelError
	case logrus.WarnLevel:
		return tracelog.LevelWarn
	case logrus.InfoLevel:
		return tracelog.LevelInfo
	case logrus.DebugLevel:
		return tracelog.LevelDebug
	}
	return tracelog.LevelTrace
}

func (h *hook) Levels() []logrus.Level { return logrus.AllLevels }

// Fire writes the entry. Fields are written in key order, since logrus
// keeps them in a map. The activity ID is taken from the entry's context,
// if it has one.
func (h *hook) Fire(e *logrus.Entry) error {
	level := Level(e.Level)
	if !h.logger.Enabled(level) {
		return nil
	}
	var modulePath, file string
	var line uint32
	if e.HasCaller() {
		modulePath = tracelog.PackagePath(e.Caller.Function)
		file, line = e.Caller.File, uint32(e.Caller.Line)
	}
	msg := internal.Message(e.Message, internal.SortedKeyvals(e.Data)...)
	return h.logger.Log(level, tracelog.ActivityFromContext(e.Context), modulePath, file, line, msg)
}
