// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elogr

import "runtime"

// callerLine returns the line it is called from.
func callerLine() uint32 {
	_, _, line, _ := runtime.Caller(1)
	return uint32(line)
}
