// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package replay writes and reads raw-frame dump files for diagnostic
// replays of a telemetry session.
//
// A dump file is a plain concatenation of 32-byte frames.
// Files with a ".zst" extension are zstd-compressed.
package replay // import "github.com/go-lpc/pidtel/replay"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/history"
	"github.com/klauspost/compress/zstd"
)

// Compressed reports whether fname names a zstd-compressed dump.
func Compressed(fname string) bool {
	return strings.EqualFold(filepath.Ext(fname), ".zst")
}

// Dump writes the raw frames to the file fname.
func Dump(fname string, raws []history.Raw) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("replay: could not create dump file: %w", err)
	}
	defer f.Close()

	var (
		w  io.Writer = f
		zw *zstd.Encoder
	)
	if Compressed(fname) {
		zw, err = zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("replay: could not create zstd writer: %w", err)
		}
		defer zw.Close()
		w = zw
	}

	enc := frame.NewEncoder(w)
	for i := range raws {
		err = enc.WriteRaw(raws[i][:])
		if err != nil {
			return fmt.Errorf("replay: could not write frame #%d: %w", i, err)
		}
	}

	if zw != nil {
		err = zw.Close()
		if err != nil {
			return fmt.Errorf("replay: could not flush zstd stream: %w", err)
		}
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("replay: could not close dump file: %w", err)
	}
	return nil
}

// Reader reads frames back from a dump file.
type Reader struct {
	src io.Closer
	zr  *zstd.Decoder
	dec *frame.Decoder
}

// Open opens the dump file fname for reading.
func Open(fname string) (*Reader, error) {
	src, err := openRaw(fname)
	if err != nil {
		return nil, fmt.Errorf("replay: could not open dump file: %w", err)
	}

	r := &Reader{src: src}
	var rr io.Reader = src
	if Compressed(fname) {
		r.zr, err = zstd.NewReader(rr)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("replay: could not create zstd reader: %w", err)
		}
		rr = r.zr
	}
	r.dec = frame.NewDecoder(rr)
	return r, nil
}

// Next reads the next frame and returns its raw bytes.
// Next returns io.EOF at the end of the dump. Corrupted frames are
// reported with an error wrapping frame.ErrBadMagic; reading can go on.
func (r *Reader) Next() (history.Raw, frame.RawFrame, error) {
	var (
		raw history.Raw
		f   frame.RawFrame
	)
	err := r.dec.Decode(&f)
	if err != nil {
		if errors.Is(err, frame.ErrBadMagic) {
			copy(raw[:], r.dec.Raw())
		}
		return raw, f, err
	}
	copy(raw[:], r.dec.Raw())
	return raw, f, nil
}

func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.src.Close()
}

// Ingester consumes datagrams, like listener.Listener does.
type Ingester interface {
	Ingest(p []byte) error
}

// Replay feeds every frame of the dump file fname to dst, in order, and
// returns the number of frames read. Frames rejected by dst are counted
// but do not stop the replay.
func Replay(dst Ingester, fname string) (int, error) {
	r, err := Open(fname)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n := 0
	for {
		raw, _, err := r.Next()
		switch {
		case err == nil, errors.Is(err, frame.ErrBadMagic):
			n++
			_ = dst.Ingest(raw[:])
		case errors.Is(err, io.EOF):
			return n, nil
		default:
			return n, fmt.Errorf("replay: could not read dump file %q: %w", fname, err)
		}
	}
}
