// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package replay

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/history"
	"github.com/go-lpc/pidtel/listener"
)

func TestDumpReplay(t *testing.T) {
	tmp := t.TempDir()

	var raws []history.Raw
	for _, seq := range []uint32{1, 2, 5, 6} {
		raws = append(raws, frame.Encode(frame.New(seq, 1, 0.5, 0.1, 0.2, 0.3, 0.4)))
	}
	bad := frame.Encode(frame.New(7, 0, 0, 0, 0, 0, 0))
	bad[0] = 0xff
	raws = append(raws, bad)

	for _, name := range []string{"dump.raw", "dump.raw.zst", "DUMP.ZST"} {
		t.Run(name, func(t *testing.T) {
			fname := filepath.Join(tmp, name)
			err := Dump(fname, raws)
			if err != nil {
				t.Fatalf("could not dump frames: %+v", err)
			}

			fi, err := os.Stat(fname)
			if err != nil {
				t.Fatalf("could not stat dump: %+v", err)
			}
			if !Compressed(name) && fi.Size() != int64(len(raws)*frame.Size) {
				t.Fatalf("invalid dump size: got=%d, want=%d", fi.Size(), len(raws)*frame.Size)
			}

			r, err := Open(fname)
			if err != nil {
				t.Fatalf("could not open dump: %+v", err)
			}
			defer r.Close()

			for i := range raws {
				raw, f, err := r.Next()
				switch i {
				case len(raws) - 1:
					if !errors.Is(err, frame.ErrBadMagic) {
						t.Fatalf("frame[%d]: invalid error: got=%v, want=%v", i, err, frame.ErrBadMagic)
					}
				default:
					if err != nil {
						t.Fatalf("frame[%d]: could not read: %+v", i, err)
					}
					if f.Magic != frame.Magic {
						t.Fatalf("frame[%d]: invalid magic 0x%x", i, f.Magic)
					}
				}
				if raw != raws[i] {
					t.Fatalf("frame[%d]: invalid raw bytes:\ngot= %s\nwant=%s", i,
						frame.Hex(raw[:]), frame.Hex(raws[i][:]),
					)
				}
			}
			_, _, err = r.Next()
			if !errors.Is(err, io.EOF) {
				t.Fatalf("invalid error at end of dump: got=%v, want=%v", err, io.EOF)
			}

			l := listener.New(listener.WithLogger(log.New(io.Discard, "", 0)))
			n, err := Replay(l, fname)
			if err != nil {
				t.Fatalf("could not replay dump: %+v", err)
			}
			if got, want := n, len(raws); got != want {
				t.Fatalf("invalid number of replayed frames: got=%d, want=%d", got, want)
			}
			if got, want := len(l.Snapshot()), 4; got != want {
				t.Fatalf("invalid number of samples: got=%d, want=%d", got, want)
			}
			if got, want := l.LostPackets(), uint64(2); got != want {
				t.Fatalf("invalid lost packets: got=%d, want=%d", got, want)
			}
			if got, want := l.Stats().BadMagic, uint64(1); got != want {
				t.Fatalf("invalid bad-magic count: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestReplayTruncated(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "truncated.raw")
	p := frame.Encode(frame.New(1, 0, 0, 0, 0, 0, 0))
	err := os.WriteFile(fname, append(p[:], p[:10]...), 0644)
	if err != nil {
		t.Fatalf("could not create dump: %+v", err)
	}

	l := listener.New(listener.WithLogger(log.New(io.Discard, "", 0)))
	n, err := Replay(l, fname)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("invalid error: got=%v, want=%v", err, io.ErrUnexpectedEOF)
	}
	if n != 1 {
		t.Fatalf("invalid number of replayed frames: %d", n)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.raw"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("invalid error: %+v", err)
	}
}
