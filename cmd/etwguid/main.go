// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The etwguid command prints the provider ID derived from each provider name
// given on the command line, as etw.NewProvider derives it. With -log it
// also registers the provider and writes one record, for checking that a
// trace session picks it up.
//
// Usage: etwguid [-braced] [-c] [-log message] name...
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/exp/etw/guid"
	"golang.org/x/exp/etw/tracelog"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("etwguid: ")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("etwguid", flag.ContinueOnError)
	braced := fs.Bool("braced", false, "print IDs in braces, as the registry and tracing tools show them")
	cStyle := fs.Bool("c", false, "print IDs as C initializers")
	message := fs.String("log", "", "register each provider and write `message` at the info level")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: etwguid [-braced] [-c] [-log message] name...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no provider names")
	}
	for _, name := range fs.Args() {
		id := guid.ProviderIDFromName(name)
		var s string
		switch {
		case *cStyle:
			s = cInitializer(id)
		case *braced:
			s = "{" + id.String() + "}"
		default:
			s = id.String()
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", s, name); err != nil {
			return err
		}
		if *message != "" {
			if err := logOnce(name, *message); err != nil {
				return err
			}
		}
	}
	return nil
}

func logOnce(name, message string) error {
	l, err := tracelog.New(tracelog.WithProviderName(name))
	if err != nil {
		return err
	}
	defer l.Close()
	modulePath, file, line := tracelog.Caller(0)
	return l.Info(nil, modulePath, file, line, message)
}

// cInitializer formats id as a GUID initializer in C.
func cInitializer(id guid.GUID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{0x%08x, 0x%04x, 0x%04x, {", id.Data1, id.Data2, id.Data3)
	for i, x := range id.Data4 {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "0x%02x", x)
	}
	b.WriteString("}}")
	return b.String()
}
