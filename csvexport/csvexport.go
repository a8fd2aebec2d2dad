// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package csvexport serializes a telemetry history to CSV.
package csvexport // import "github.com/go-lpc/pidtel/csvexport"

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-lpc/pidtel/history"
)

// Header is the first line of an exported file.
const Header = "seq,timestamp,setpoint,error,p,i,d,output"

// DefaultName is the name of the file written by WriteFile.
const DefaultName = "debug_data.csv"

// ExportError reports an exported history that could not be stored.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("csvexport: could not export history to %q: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Export returns the CSV representation of samples, in order.
func Export(samples []history.Sample) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(Header) + 1 + 64*len(samples))
	_ = Write(buf, samples) // can not fail.
	return buf.Bytes()
}

// Write writes the CSV representation of samples to w.
func Write(w io.Writer, samples []history.Sample) error {
	var (
		line = make([]byte, 0, 128)
		err  error
	)
	line = append(line, Header...)
	line = append(line, '\n')
	_, err = w.Write(line)
	if err != nil {
		return fmt.Errorf("csvexport: could not write header: %w", err)
	}

	for i, s := range samples {
		line = appendSample(line[:0], s)
		_, err = w.Write(line)
		if err != nil {
			return fmt.Errorf("csvexport: could not write sample #%d: %w", i, err)
		}
	}
	return nil
}

func appendSample(p []byte, s history.Sample) []byte {
	p = strconv.AppendUint(p, uint64(s.Seq), 10)
	p = append(p, ',')
	p = appendTime(p, s.RecvAt)
	for _, v := range []float32{s.Setpoint, s.Error, s.P, s.I, s.D, s.Output} {
		p = append(p, ',')
		p = appendFloat(p, float64(v), 32)
	}
	return append(p, '\n')
}

// appendTime appends t as seconds since the Unix epoch with sub-second
// precision.
func appendTime(p []byte, t time.Time) []byte {
	sec := float64(t.UnixNano()) / 1e9
	return appendFloat(p, sec, 64)
}

// appendFloat appends the shortest representation of v that round-trips
// at the given bit size.
// Values in [1e-4, 2^24) for float32 (2^53 for float64) are written in
// plain decimal notation, with at least one fractional digit (1000000.0).
// Other values use the exponent notation (1e-05, 1.6777216e+07).
func appendFloat(p []byte, v float64, bitSize int) []byte {
	var (
		lo = 1e-4
		hi = float64(1 << 53)
	)
	if bitSize == 32 {
		lo = float64(float32(1e-4))
		hi = float64(1 << 24)
	}

	switch a := math.Abs(v); {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return strconv.AppendFloat(p, v, 'g', -1, bitSize)
	case a != 0 && (a < lo || a >= hi):
		return strconv.AppendFloat(p, v, 'e', -1, bitSize)
	}

	beg := len(p)
	p = strconv.AppendFloat(p, v, 'f', -1, bitSize)
	if bytes.IndexByte(p[beg:], '.') < 0 {
		p = append(p, ".0"...)
	}
	return p
}

// WriteFile exports samples to dir/debug_data.csv and returns the path to
// the exported file. The file is written to a temporary file first and
// then renamed, so a failed export never leaves a partial file behind.
func WriteFile(dir string, samples []history.Sample) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	fname := filepath.Join(dir, DefaultName)

	f, err := os.CreateTemp(dir, ".debug_data-*.csv")
	if err != nil {
		return "", &ExportError{Path: fname, Err: err}
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	_, err = f.Write(Export(samples))
	if err != nil {
		return "", &ExportError{Path: fname, Err: err}
	}

	err = f.Close()
	if err != nil {
		return "", &ExportError{Path: fname, Err: err}
	}

	err = os.Rename(f.Name(), fname)
	if err != nil {
		return "", &ExportError{Path: fname, Err: err}
	}

	return fname, nil
}
