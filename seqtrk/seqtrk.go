// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seqtrk tracks frame sequence numbers to account for lost frames.
package seqtrk // import "github.com/go-lpc/pidtel/seqtrk"

import (
	"fmt"
	"strings"
)

// Mode selects how non-increasing sequence numbers are accounted for.
type Mode uint8

const (
	// Literal computes seq-last-1 with wrapping 32-bit arithmetic, whatever
	// the value of seq. A duplicate or a step backwards thus yields a huge
	// loss count (e.g. 5 then 5 reports 0xFFFFFFFF lost frames).
	Literal Mode = iota

	// Lenient reports no loss for duplicates and steps backwards.
	// These are counted as reordered frames instead.
	Lenient
)

func (m Mode) String() string {
	switch m {
	case Literal:
		return "literal"
	case Lenient:
		return "lenient"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses the textual form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "literal":
		return Literal, nil
	case "lenient":
		return Lenient, nil
	default:
		return 0, fmt.Errorf("seqtrk: invalid mode %q", s)
	}
}

// Tracker computes the number of frames lost between successive
// sequence numbers.
// Tracker is not safe for concurrent use: it belongs to the ingestion path.
type Tracker struct {
	mode  Mode
	last  uint32
	valid bool // whether last holds a sequence number

	reordered uint64
}

// New returns a tracker using the provided accounting mode.
func New(mode Mode) *Tracker {
	return &Tracker{mode: mode}
}

// Observe records seq and returns the number of frames lost since the
// previously observed sequence number.
// The first observation establishes the baseline and never reports a loss.
func (trk *Tracker) Observe(seq uint32) uint32 {
	if !trk.valid {
		trk.last = seq
		trk.valid = true
		return 0
	}

	last := trk.last
	trk.last = seq

	if seq == last+1 {
		return 0
	}

	if trk.mode == Lenient && int32(seq-last) <= 0 {
		trk.reordered++
		return 0
	}

	return seq - last - 1
}

// Reset forgets the last observed sequence number.
func (trk *Tracker) Reset() {
	trk.last = 0
	trk.valid = false
	trk.reordered = 0
}

// Last returns the last observed sequence number, if any.
func (trk *Tracker) Last() (uint32, bool) {
	return trk.last, trk.valid
}

// Reordered returns the number of duplicate or backward sequence numbers
// observed in Lenient mode.
func (trk *Tracker) Reordered() uint64 {
	return trk.reordered
}

// Mode returns the accounting mode of the tracker.
func (trk *Tracker) Mode() Mode { return trk.mode }
