// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pidtel-dump decodes and displays raw-frame dump files.
//
// Usage: pidtel-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> pidtel-dump -hex ./testdata/frames.raw
//	=== file "./testdata/frames.raw" ===
//	seq=         1 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
//	  EF BE AD DE 01 00 00 00 00 00 80 3F 00 00 00 3F CD CC CC 3D CD CC 4C 3E 9A 99 99 3E CD CC CC 3E
//	[...]
//	frames:   4
//	invalid:  0
//	lost:     2
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/pidtel/csvexport"
	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/history"
	"github.com/go-lpc/pidtel/replay"
	"github.com/go-lpc/pidtel/seqtrk"
)

func main() {
	log.SetPrefix("pidtel-dump: ")
	log.SetFlags(0)

	var (
		hex  = flag.Bool("hex", false, "display raw frame bytes")
		csv  = flag.Bool("csv", false, "display frames as CSV")
		mode = flag.String("mode", "literal", "sequence tracking mode (literal|lenient)")
	)

	flag.Usage = func() {
		fmt.Printf(`pidtel-dump decodes and displays raw-frame dump files.

Usage: pidtel-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Files with a ".zst" extension are decompressed on the fly.

Example:

 $> pidtel-dump -hex ./testdata/frames.raw
 === file "./testdata/frames.raw" ===
 seq=         1 setpoint=           1 error=         0.5 p=         0.1 i=         0.2 d=         0.3 output=         0.4
   EF BE AD DE 01 00 00 00 00 00 80 3F 00 00 00 3F CD CC CC 3D CD CC 4C 3E 9A 99 99 3E CD CC CC 3E
 [...]
 frames:   4
 invalid:  0
 lost:     2

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input dump file")
	}

	trkMode, err := seqtrk.ParseMode(*mode)
	if err != nil {
		log.Fatalf("could not parse sequence tracking mode: %+v", err)
	}

	for _, fname := range flag.Args() {
		var err error
		switch {
		case *csv:
			err = processCSV(os.Stdout, fname)
		default:
			err = process(os.Stdout, fname, trkMode, *hex)
		}
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, mode seqtrk.Mode, hex bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	r, err := replay.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer r.Close()

	var (
		trk     = seqtrk.New(mode)
		frames  = 0
		invalid = 0
		lost    = uint64(0)
	)

	fmt.Fprintf(wbuf, "=== file %q ===\n", fname)
loop:
	for {
		raw, f, err := r.Next()
		switch {
		case err == nil:
			frames++
			lost += uint64(trk.Observe(f.Seq))
			fmt.Fprintf(wbuf,
				"seq=% 10d setpoint=% 12g error=% 12g p=% 12g i=% 12g d=% 12g output=% 12g\n",
				f.Seq, f.Setpoint, f.Error, f.P, f.I, f.D, f.Output,
			)
		case errors.Is(err, frame.ErrBadMagic):
			frames++
			invalid++
			fmt.Fprintf(wbuf, "invalid frame: %v\n", err)
		case errors.Is(err, io.EOF):
			break loop
		default:
			return fmt.Errorf("could not decode frame #%d: %w", frames, err)
		}
		if hex {
			fmt.Fprintf(wbuf, "  %s\n", frame.Hex(raw[:]))
		}
	}

	fmt.Fprintf(wbuf, "frames:  % 3d\n", frames)
	fmt.Fprintf(wbuf, "invalid: % 3d\n", invalid)
	fmt.Fprintf(wbuf, "lost:    % 3d\n", lost)
	if mode == seqtrk.Lenient {
		fmt.Fprintf(wbuf, "reorder: % 3d\n", trk.Reordered())
	}

	return nil
}

var unixEpoch = time.Unix(0, 0)

// processCSV writes the valid frames of the dump as CSV rows.
// Dump files carry no receive time: rows hold a zero timestamp.
func processCSV(w io.Writer, fname string) error {
	r, err := replay.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer r.Close()

	var samples []history.Sample
	for {
		_, f, err := r.Next()
		switch {
		case err == nil:
			samples = append(samples, history.NewSample(f, unixEpoch))
		case errors.Is(err, frame.ErrBadMagic):
			continue
		case errors.Is(err, io.EOF):
			return csvexport.Write(w, samples)
		default:
			return fmt.Errorf("could not decode frame #%d: %w", len(samples), err)
		}
	}
}
