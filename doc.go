// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pidtel holds code to ingest, track and export the telemetry
// stream of a PID controller.
//
// A PID controller emits fixed-size 32-byte frames over UDP.
// Frames are decoded by package frame, packet loss is derived from
// sequence numbers by package seqtrk, samples are retained in a bounded
// history by package history, datagrams are received by package listener
// and histories are exported to CSV by package csvexport.
package pidtel // import "github.com/go-lpc/pidtel"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of pidtel and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/pidtel"
	if b.Main.Path == root && b.Main.Version != "" {
		return b.Main.Version, b.Main.Sum
	}

	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
