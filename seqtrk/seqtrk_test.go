// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seqtrk

import (
	"math"
	"testing"
)

func TestObserve(t *testing.T) {
	for _, tc := range []struct {
		name string
		mode Mode
		seqs []uint32
		want []uint32
	}{
		{
			name: "first",
			seqs: []uint32{1234},
			want: []uint32{0},
		},
		{
			name: "consecutive",
			seqs: []uint32{5, 6},
			want: []uint32{0, 0},
		},
		{
			name: "gap",
			seqs: []uint32{5, 8},
			want: []uint32{0, 2},
		},
		{
			name: "duplicate",
			seqs: []uint32{5, 5},
			want: []uint32{0, math.MaxUint32},
		},
		{
			name: "backwards",
			seqs: []uint32{5, 3},
			want: []uint32{0, math.MaxUint32 - 2},
		},
		{
			name: "backwards-then-forward",
			seqs: []uint32{5, 3, 4},
			want: []uint32{0, math.MaxUint32 - 2, 0},
		},
		{
			name: "wrap-around",
			seqs: []uint32{math.MaxUint32 - 1, math.MaxUint32, 0, 2},
			want: []uint32{0, 0, 0, 1},
		},
		{
			name: "lenient-duplicate",
			mode: Lenient,
			seqs: []uint32{5, 5, 6},
			want: []uint32{0, 0, 0},
		},
		{
			name: "lenient-backwards",
			mode: Lenient,
			seqs: []uint32{5, 3, 7},
			want: []uint32{0, 0, 3},
		},
		{
			name: "lenient-gap",
			mode: Lenient,
			seqs: []uint32{1, 2, 5},
			want: []uint32{0, 0, 2},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			trk := New(tc.mode)
			for i, seq := range tc.seqs {
				got := trk.Observe(seq)
				if got != tc.want[i] {
					t.Fatalf("observe[%d](%d): got=%d, want=%d", i, seq, got, tc.want[i])
				}
			}
			last, ok := trk.Last()
			if !ok {
				t.Fatalf("expected a valid last sequence number")
			}
			if got, want := last, tc.seqs[len(tc.seqs)-1]; got != want {
				t.Fatalf("invalid last seq: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestReset(t *testing.T) {
	trk := New(Lenient)
	trk.Observe(5)
	trk.Observe(4)
	if got, want := trk.Reordered(), uint64(1); got != want {
		t.Fatalf("invalid reordered count: got=%d, want=%d", got, want)
	}

	trk.Reset()
	if _, ok := trk.Last(); ok {
		t.Fatalf("expected no last sequence number after reset")
	}
	if got := trk.Reordered(); got != 0 {
		t.Fatalf("invalid reordered count after reset: %d", got)
	}
	if got := trk.Observe(100); got != 0 {
		t.Fatalf("first observation after reset reported a loss: %d", got)
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		str  string
		want Mode
		err  bool
	}{
		{"", Literal, false},
		{"literal", Literal, false},
		{"Lenient", Lenient, false},
		{" lenient ", Lenient, false},
		{"strict", 0, true},
	} {
		t.Run(tc.str, func(t *testing.T) {
			got, err := ParseMode(tc.str)
			switch {
			case err != nil && !tc.err:
				t.Fatalf("could not parse mode: %+v", err)
			case err == nil && tc.err:
				t.Fatalf("expected an error")
			}
			if got != tc.want {
				t.Fatalf("invalid mode: got=%v, want=%v", got, tc.want)
			}
			if !tc.err {
				back, err := ParseMode(got.String())
				if err != nil || back != got {
					t.Fatalf("invalid round-trip: got=%v (err=%v), want=%v", back, err, got)
				}
			}
		})
	}
}
