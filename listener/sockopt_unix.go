// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package listener

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func control(rcvbuf int) func(network, address string, c syscall.RawConn) error {
	if rcvbuf <= 0 {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvbuf)
		})
		if err != nil {
			return fmt.Errorf("listener: could not access raw socket: %w", err)
		}
		if serr != nil {
			return fmt.Errorf("listener: could not set SO_RCVBUF=%d: %w", rcvbuf, serr)
		}
		return nil
	}
}

func readBufferSize(conn syscall.Conn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("listener: could not access raw socket: %w", err)
	}
	var (
		n    int
		serr error
	)
	err = raw.Control(func(fd uintptr) {
		n, serr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	})
	if err != nil {
		return 0, fmt.Errorf("listener: could not access raw socket: %w", err)
	}
	if serr != nil {
		return 0, fmt.Errorf("listener: could not get SO_RCVBUF: %w", serr)
	}
	return n, nil
}
