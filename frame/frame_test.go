// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
)

func TestDecodeBadLength(t *testing.T) {
	for _, n := range []int{0, 1, 4, 31, 33, 64, 1024} {
		_, err := Decode(make([]byte, n))
		if !errors.Is(err, ErrBadLength) {
			t.Fatalf("len=%d: invalid error: got=%v, want=%v", n, err, ErrBadLength)
		}
		var cerr *CodecError
		if !errors.As(err, &cerr) {
			t.Fatalf("len=%d: expected a *CodecError, got %T", n, err)
		}
		if got, want := cerr.Len, n; got != want {
			t.Fatalf("invalid reported length: got=%d, want=%d", got, want)
		}
	}
}

func TestDecodeBadMagic(t *testing.T) {
	for _, magic := range []uint32{0, 1, 0xEFBEADDE, 0xDEADBEEE, 0xFFFFFFFF} {
		p := Encode(New(1, 1, 2, 3, 4, 5, 6))
		binary.LittleEndian.PutUint32(p[:4], magic)
		_, err := Decode(p[:])
		if !errors.Is(err, ErrBadMagic) {
			t.Fatalf("magic=0x%x: invalid error: got=%v, want=%v", magic, err, ErrBadMagic)
		}
		want := fmt.Sprintf("frame: invalid frame magic (got=0x%08x, want=0xdeadbeef)", magic)
		if got := err.Error(); got != want {
			t.Fatalf("invalid error message:\ngot= %q\nwant=%q", got, want)
		}
	}
}

func TestDecode(t *testing.T) {
	raw := []byte{
		0xef, 0xbe, 0xad, 0xde, // magic
		0x2a, 0x00, 0x00, 0x00, // seq
		0x00, 0x00, 0x80, 0x3f, // setpoint=1
		0x00, 0x00, 0x00, 0xbf, // error=-0.5
		0x00, 0x00, 0x00, 0x40, // p=2
		0x00, 0x00, 0x00, 0x00, // i=0
		0x00, 0x00, 0x80, 0x7f, // d=+Inf
		0x00, 0x00, 0x20, 0x41, // output=10
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("could not decode frame: %+v", err)
	}
	want := RawFrame{
		Magic:    Magic,
		Seq:      42,
		Setpoint: 1,
		Error:    -0.5,
		P:        2,
		I:        0,
		D:        float32(math.Inf(+1)),
		Output:   10,
	}
	if got != want {
		t.Fatalf("invalid frame:\ngot= %#v\nwant=%#v", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	nan := math.Float32frombits(0x7fc00001) // NaN with a payload
	for _, tc := range []struct {
		name string
		f    RawFrame
	}{
		{"zero", New(0, 0, 0, 0, 0, 0, 0)},
		{"simple", New(1, 1.5, -0.25, 0.1, 0.01, 0.001, 42)},
		{"max-seq", New(math.MaxUint32, -1, 1, -1, 1, -1, 1)},
		{"denormal", New(7, math.SmallestNonzeroFloat32, 0, 0, 0, 0, -math.MaxFloat32)},
		{"nan", New(8, nan, 0, 0, 0, 0, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := Encode(tc.f)
			got, err := Decode(p[:])
			if err != nil {
				t.Fatalf("could not decode: %+v", err)
			}
			if got.Seq != tc.f.Seq {
				t.Fatalf("invalid seq: got=%d, want=%d", got.Seq, tc.f.Seq)
			}
			// compare bit patterns: NaN != NaN.
			if got, want := bits(got), bits(tc.f); !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid float bits:\ngot= %08x\nwant=%08x", got, want)
			}

			var f RawFrame
			raw, _ := tc.f.MarshalBinary()
			if err := f.UnmarshalBinary(raw); err != nil {
				t.Fatalf("could not unmarshal: %+v", err)
			}
			if got, want := bits(f), bits(tc.f); !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid unmarshaled frame: got=%08x, want=%08x", got, want)
			}
		})
	}
}

func TestHex(t *testing.T) {
	f := New(1, 0, 0, 0, 0, 0, 0)
	want := "EF BE AD DE 01 00 00 00" + " 00 00 00 00" + " 00 00 00 00" +
		" 00 00 00 00" + " 00 00 00 00" + " 00 00 00 00" + " 00 00 00 00"
	if got := f.String(); got != want {
		t.Fatalf("invalid hex dump:\ngot= %q\nwant=%q", got, want)
	}
	if got := Hex(nil); got != "" {
		t.Fatalf("invalid empty hex dump: %q", got)
	}
}

func bits(f RawFrame) []uint32 {
	return []uint32{
		math.Float32bits(f.Setpoint),
		math.Float32bits(f.Error),
		math.Float32bits(f.P),
		math.Float32bits(f.I),
		math.Float32bits(f.D),
		math.Float32bits(f.Output),
	}
}
