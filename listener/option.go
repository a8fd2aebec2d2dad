// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listener

import (
	"log"
	"time"

	"github.com/go-lpc/pidtel/history"
	"github.com/go-lpc/pidtel/seqtrk"
)

type config struct {
	host     string
	capacity int
	mode     seqtrk.Mode
	rcvbuf   int // SO_RCVBUF size in bytes, 0 to keep the system default
	verbose  bool
	msg      *log.Logger
	now      func() time.Time
}

func newConfig() config {
	return config{
		host:     "0.0.0.0",
		capacity: history.DefaultCapacity,
		mode:     seqtrk.Literal,
		now:      time.Now,
	}
}

// Option configures a Listener.
type Option func(cfg *config)

// WithHost sets the local address the datagram socket binds to.
func WithHost(host string) Option {
	return func(cfg *config) {
		cfg.host = host
	}
}

// WithCapacity sets the maximum number of samples (and raw frames)
// retained by the history buffer.
func WithCapacity(n int) Option {
	return func(cfg *config) {
		cfg.capacity = n
	}
}

// WithMode sets how non-increasing sequence numbers are accounted for.
func WithMode(mode seqtrk.Mode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithReadBuffer sets the size of the kernel receive buffer of the socket.
func WithReadBuffer(n int) Option {
	return func(cfg *config) {
		cfg.rcvbuf = n
	}
}

// WithLogger sets the logger used to report listener activity.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithVerbose enables logging of each discarded datagram and of each
// sequence gap.
func WithVerbose(v bool) Option {
	return func(cfg *config) {
		cfg.verbose = v
	}
}

// WithClock sets the function used to timestamp received frames.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}
