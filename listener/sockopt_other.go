// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package listener

import (
	"fmt"
	"syscall"
)

func control(rcvbuf int) func(network, address string, c syscall.RawConn) error {
	return nil
}

func readBufferSize(conn syscall.Conn) (int, error) {
	return 0, fmt.Errorf("listener: SO_RCVBUF not supported on this platform")
}
