// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracelog writes log records as ETW events.
//
// Every record becomes one of five events, error, warn, info, debug or
// trace, each with the fields module_path, file, line and message. A
// Logger can leave module paths or source positions out of the records,
// for privacy or to keep them small.
//
// The adapters under log-adapters bridge common logging packages to a
// Logger; NewHandler bridges log/slog.
package tracelog

import (
	"strconv"

	"go.uber.org/atomic"
	"golang.org/x/exp/etw"
	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

// DefaultProviderName is the name of the provider New registers unless told
// otherwise.
const DefaultProviderName = "GoLogProvider"

// DefaultProviderID is the ID of the default provider.
var DefaultProviderID = guid.MustParse("7f006a22-73fb-4c17-b1eb-0a3070f9f187")

// Level is the severity of a log record.
type Level int

const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = [...]string{
	LevelError: "error",
	LevelWarn:  "warn",
	LevelInfo:  "info",
	LevelDebug: "debug",
	LevelTrace: "trace",
}

func (l Level) String() string {
	if l >= LevelError && l <= LevelTrace {
		return levelNames[l]
	}
	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// ETW returns the event level records at l are written with.
func (l Level) ETW() etw.Level {
	switch l {
	case LevelError:
		return etw.LevelError
	case LevelWarn:
		return etw.LevelWarning
	case LevelInfo:
		return etw.LevelInfo
	}
	return etw.LevelVerbose
}

func logEvent(l Level) *etw.Event {
	return etw.MustEvent(l.String(),
		etw.WithLevel(l.ETW()),
		etw.WithFields(
			etw.StringField("module_path"),
			etw.StringField("file"),
			etw.Uint32Field("line"),
			etw.StringField("message"),
		))
}

var events = [...]*etw.Event{
	LevelError: logEvent(LevelError),
	LevelWarn:  logEvent(LevelWarn),
	LevelInfo:  logEvent(LevelInfo),
	LevelDebug: logEvent(LevelDebug),
	LevelTrace: logEvent(LevelTrace),
}

// Event returns the event records at l are written as. Levels past
// LevelTrace are written as trace.
func Event(l Level) *etw.Event {
	if l < LevelError {
		l = LevelError
	}
	if l > LevelTrace {
		l = LevelTrace
	}
	return events[l]
}

// A Logger writes log records to a provider.
type Logger struct {
	provider *etw.Provider
	owned    bool

	logModulePath atomic.Bool
	logFilePath   atomic.Bool
}

type options struct {
	provider     *etw.Provider
	name         string
	providerOpts []etw.ProviderOpt
}

// An Option configures New.
type Option func(*options)

// WithProvider makes the Logger write to an existing provider, which the
// caller keeps ownership of.
func WithProvider(p *etw.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithProviderName registers a provider called name instead of the
// default one. Its ID is derived from the name.
func WithProviderName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithProviderOpts passes options to etw.NewProvider.
func WithProviderOpts(opts ...etw.ProviderOpt) Option {
	return func(o *options) { o.providerOpts = append(o.providerOpts, opts...) }
}

// New returns a Logger. Unless WithProvider is given it registers a provider
// which is unregistered by Close.
func New(opts ...Option) (*Logger, error) {
	o := options{name: DefaultProviderName}
	for _, opt := range opts {
		opt(&o)
	}
	l := &Logger{provider: o.provider}
	if l.provider == nil {
		var popts []etw.ProviderOpt
		if o.name == DefaultProviderName {
			popts = append(popts, etw.WithID(DefaultProviderID))
		}
		p, err := etw.NewProvider(o.name, append(popts, o.providerOpts...)...)
		if err != nil {
			return nil, xerrors.Errorf("tracelog: %w", err)
		}
		l.provider = p
		l.owned = true
	}
	l.logModulePath.Store(true)
	l.logFilePath.Store(true)
	return l, nil
}

// Provider returns the provider l writes to.
func (l *Logger) Provider() *etw.Provider { return l.provider }

// SetLogModulePath controls whether module paths are written. The default
// is true.
func (l *Logger) SetLogModulePath(v bool) { l.logModulePath.Store(v) }

// SetLogFilePath controls whether source file names and line numbers are
// written. The default is true.
func (l *Logger) SetLogFilePath(v bool) { l.logFilePath.Store(v) }

func (l *Logger) LogModulePath() bool { return l.logModulePath.Load() }
func (l *Logger) LogFilePath() bool   { return l.logFilePath.Load() }

// Enabled reports whether a session is listening to records at level.
func (l *Logger) Enabled(level Level) bool {
	return l.provider.IsEnabledForLevel(level.ETW())
}

// Log writes one record. activity may be nil.
func (l *Logger) Log(level Level, activity *guid.GUID, modulePath, file string, line uint32, message string) error {
	if !l.logModulePath.Load() {
		modulePath = ""
	}
	if !l.logFilePath.Load() {
		file, line = "", 0
	}
	return l.provider.Emit(Event(level), activity,
		etw.String(modulePath),
		etw.String(file),
		etw.Uint32(line),
		etw.String(message))
}

func (l *Logger) Error(activity *guid.GUID, modulePath, file string, line uint32, message string) error {
	return l.Log(LevelError, activity, modulePath, file, line, message)
}

func (l *Logger) Warn(activity *guid.GUID, modulePath, file string, line uint32, message string) error {
	return l.Log(LevelWarn, activity, modulePath, file, line, message)
}

func (l *Logger) Info(activity *guid.GUID, modulePath, file string, line uint32, message string) error {
	return l.Log(LevelInfo, activity, modulePath, file, line, message)
}

func (l *Logger) Debug(activity *guid.GUID, modulePath, file string, line uint32, message string) error {
	return l.Log(LevelDebug, activity, modulePath, file, line, message)
}

func (l *Logger) Trace(activity *guid.GUID, modulePath, file string, line uint32, message string) error {
	return l.Log(LevelTrace, activity, modulePath, file, line, message)
}

// Close unregisters the provider if New registered it.
func (l *Logger) Close() error {
	if !l.owned {
		return nil
	}
	return l.provider.Close()
}
