// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package etw writes self-describing (manifest-free) events to Event Tracing
// for Windows.
//
// A program registers a Provider once and declares each of its events once
// with NewEvent. The schema of an event, its metadata, is encoded when the
// event is declared and carried inline with every write, so no manifest has
// to be installed for a consumer to decode it.
//
//	var requestEvent = etw.MustEvent("Request",
//		etw.WithLevel(etw.LevelInfo),
//		etw.WithFields(
//			etw.StringField("path"),
//			etw.Uint32Field("status"),
//		))
//
//	p, err := etw.NewProvider("MyCompany.MyService")
//	if err != nil {
//		// run without tracing
//	}
//	defer p.Close()
//
//	p.Emit(requestEvent, nil, etw.String(r.URL.Path), etw.Uint32(200))
//
// Emit costs a single atomic load when no trace session is listening to the
// provider at the event's level and keywords. Otherwise the values are encoded
// into one buffer, referenced together with the cached metadata from a list of
// data descriptors, and submitted. The descriptors never outlive the write.
//
// On platforms other than 64-bit Windows, NewProvider fails with a
// RegistrationError unless a Backend is supplied with WithBackend.
package etw
