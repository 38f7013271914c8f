// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracelog

import (
	"runtime"
	"strings"
)

// Caller reports the module path, file and line of the function depth frames
// above the caller of Caller.
func Caller(depth int) (modulePath, file string, line uint32) {
	var pcs [1]uintptr
	if runtime.Callers(depth+2, pcs[:]) == 0 {
		return "", "", 0
	}
	return Frame(pcs[0])
}

// Frame reports the module path, file and line of program counter pc, as
// recorded by runtime.Callers.
func Frame(pc uintptr) (modulePath, file string, line uint32) {
	if pc == 0 {
		return "", "", 0
	}
	fs := runtime.CallersFrames([]uintptr{pc})
	f, _ := fs.Next()
	return PackagePath(f.Function), f.File, uint32(f.Line)
}

// PackagePath returns the import path of the package a fully qualified
// function name belongs to.
//
//	PackagePath("golang.org/x/exp/etw.(*Provider).Emit") == "golang.org/x/exp/etw"
func PackagePath(function string) string {
	slash := strings.LastIndexByte(function, '/')
	if dot := strings.IndexByte(function[slash+1:], '.'); dot >= 0 {
		return function[:slash+1+dot]
	}
	return function
}
