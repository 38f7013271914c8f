// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracelog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-logfmt/logfmt"
	"golang.org/x/exp/etw/guid"
)

// FromSlog returns the Level a log/slog level is written at.
func FromSlog(l slog.Level) Level {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	case l >= slog.LevelDebug:
		return LevelDebug
	}
	return LevelTrace
}

type activityKey struct{}

// ContextWithActivity returns a context whose records are written with the
// given activity ID.
func ContextWithActivity(ctx context.Context, id guid.GUID) context.Context {
	return context.WithValue(ctx, activityKey{}, id)
}

// ActivityFromContext returns the activity ID stored by ContextWithActivity,
// or nil.
func ActivityFromContext(ctx context.Context) *guid.GUID {
	if ctx == nil {
		return nil
	}
	if id, ok := ctx.Value(activityKey{}).(guid.GUID); ok {
		return &id
	}
	return nil
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// Level is the minimum level handled, in addition to the level the
	// provider is enabled at. The default is to handle every level.
	Level slog.Leveler
}

// Handler is a slog.Handler writing to a Logger. The message of a record is
// followed by its attributes in logfmt.
type Handler struct {
	l      *Logger
	opts   HandlerOptions
	prefix string
	attrs  []keyval
}

type keyval struct {
	key string
	val interface{}
}

var _ slog.Handler = (*Handler)(nil)

func NewHandler(l *Logger, opts *HandlerOptions) *Handler {
	h := &Handler{l: l}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level != nil && level < h.opts.Level.Level() {
		return false
	}
	return h.l.Enabled(FromSlog(level))
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var kv bytes.Buffer
	enc := logfmt.NewEncoder(&kv)
	for _, a := range h.attrs {
		encodeKeyval(enc, a.key, a.val)
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, f := range flatten(nil, h.prefix, a) {
			encodeKeyval(enc, f.key, f.val)
		}
		return true
	})
	msg := r.Message
	if kv.Len() > 0 {
		msg += " " + kv.String()
	}
	modulePath, file, line := Frame(r.PC)
	return h.l.Log(FromSlog(r.Level), ActivityFromContext(ctx), modulePath, file, line, msg)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append([]keyval(nil), h.attrs...)
	for _, a := range attrs {
		h2.attrs = flatten(h2.attrs, h.prefix, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

// flatten appends a to kvs, qualifying keys of group members with the
// group names.
func flatten(kvs []keyval, prefix string, a slog.Attr) []keyval {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		if len(group) == 0 {
			return kvs
		}
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, m := range group {
			kvs = flatten(kvs, prefix, m)
		}
		return kvs
	}
	if a.Key == "" {
		return kvs
	}
	var val interface{}
	switch v.Kind() {
	case slog.KindString:
		val = v.String()
	case slog.KindInt64:
		val = v.Int64()
	case slog.KindUint64:
		val = v.Uint64()
	case slog.KindFloat64:
		val = v.Float64()
	case slog.KindBool:
		val = v.Bool()
	default:
		val = v.Any()
	}
	return append(kvs, keyval{prefix + a.Key, val})
}

// badKey replaces keys logfmt cannot write.
const badKey = "!BADKEY"

// encodeKeyval writes k=v, replacing a key with no printable characters
// by badKey and writing a value logfmt cannot encode with %+v.
func encodeKeyval(enc *logfmt.Encoder, k string, v interface{}) {
	err := enc.EncodeKeyval(k, v)
	if err == logfmt.ErrInvalidKey {
		k = badKey
		err = enc.EncodeKeyval(k, v)
	}
	var merr *logfmt.MarshalerError
	if err == logfmt.ErrUnsupportedValueType || errors.As(err, &merr) {
		enc.EncodeKeyval(k, fmt.Sprintf("%+v", v))
	}
}
