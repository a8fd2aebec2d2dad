// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package replay

import (
	"io"
	"os"
)

func openRaw(fname string) (io.ReadCloser, error) {
	return os.Open(fname)
}
