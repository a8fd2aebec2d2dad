// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/pidtel/csvexport"
	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/history"
	"github.com/go-lpc/pidtel/replay"
	"github.com/go-lpc/pidtel/seqtrk"
)

func mkDump(t *testing.T, fname string, seqs ...uint32) {
	t.Helper()
	var raws []history.Raw
	for _, seq := range seqs {
		raws = append(raws, frame.Encode(frame.New(seq, 1, 0.5, 0.1, 0.2, 0.3, 0.4)))
	}
	bad := frame.Encode(frame.New(42, 0, 0, 0, 0, 0, 0))
	bad[3] = 0x00
	raws = append(raws, bad)

	err := replay.Dump(fname, raws)
	if err != nil {
		t.Fatalf("could not create dump: %+v", err)
	}
}

func TestDump(t *testing.T) {
	tmpdir := t.TempDir()

	for _, tc := range []struct {
		name string
		mode seqtrk.Mode
		hex  bool
		want string
	}{
		{
			name: "frames.raw",
			mode: seqtrk.Literal,
			want: `=== file "FNAME" ===
seq=         1 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
seq=         2 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
seq=         5 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
seq=         3 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
invalid frame: frame: could not decode frame #4: frame: invalid frame magic (got=0x00adbeef, want=0xdeadbeef)
frames:    5
invalid:   1
lost:     4294967295
`,
		},
		{
			name: "frames-lenient.raw.zst",
			mode: seqtrk.Lenient,
			hex:  true,
			want: `=== file "FNAME" ===
seq=         1 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
  EF BE AD DE 01 00 00 00 00 00 80 3F 00 00 00 3F CD CC CC 3D CD CC 4C 3E 9A 99 99 3E CD CC CC 3E
seq=         2 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
  EF BE AD DE 02 00 00 00 00 00 80 3F 00 00 00 3F CD CC CC 3D CD CC 4C 3E 9A 99 99 3E CD CC CC 3E
seq=         5 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
  EF BE AD DE 05 00 00 00 00 00 80 3F 00 00 00 3F CD CC CC 3D CD CC 4C 3E 9A 99 99 3E CD CC CC 3E
seq=         3 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
  EF BE AD DE 03 00 00 00 00 00 80 3F 00 00 00 3F CD CC CC 3D CD CC 4C 3E 9A 99 99 3E CD CC CC 3E
invalid frame: frame: could not decode frame #4: frame: invalid frame magic (got=0x00adbeef, want=0xdeadbeef)
  EF BE AD 00 2A 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00
frames:    5
invalid:   1
lost:      2
reorder:   1
`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(tmpdir, tc.name)
			mkDump(t, fname, 1, 2, 5, 3)

			out := new(bytes.Buffer)
			err := process(out, fname, tc.mode, tc.hex)
			if err != nil {
				t.Fatalf("could not process dump: %+v", err)
			}

			want := strings.Replace(tc.want, "FNAME", fname, 1)
			if got := out.String(); got != want {
				t.Fatalf("invalid dump:\ngot:\n%s\nwant:\n%s", got, want)
			}
		})
	}
}

func TestDumpCSV(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "frames.raw")
	mkDump(t, fname, 1, 2)

	out := new(bytes.Buffer)
	err := processCSV(out, fname)
	if err != nil {
		t.Fatalf("could not process dump: %+v", err)
	}

	want := csvexport.Header + "\n" +
		"1,0.0,1.0,0.5,0.1,0.2,0.3,0.4\n" +
		"2,0.0,1.0,0.5,0.1,0.2,0.3,0.4\n"
	if got := out.String(); got != want {
		t.Fatalf("invalid CSV:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDumpTruncated(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "truncated.raw")
	p := frame.Encode(frame.New(1, 0, 0, 0, 0, 0, 0))
	err := os.WriteFile(fname, p[:20], 0644)
	if err != nil {
		t.Fatalf("could not create dump: %+v", err)
	}

	err = process(new(bytes.Buffer), fname, seqtrk.Literal, false)
	if err == nil {
		t.Fatalf("expected an error")
	}
	err = processCSV(new(bytes.Buffer), fname)
	if err == nil {
		t.Fatalf("expected an error")
	}
}
