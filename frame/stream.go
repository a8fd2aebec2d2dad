// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"io"

	"golang.org/x/xerrors"
)

// Decoder reads (and validates) frames from an underlying data source.
// The data source is a plain concatenation of 32-byte frames, as written
// by Encoder.
type Decoder struct {
	r   io.Reader
	buf []byte
	err error
	n   int64 // number of frames decoded so far
}

// NewDecoder creates a decoder that reads and validates frames from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, Size),
	}
}

// Decode reads the next frame from the stream.
// Decode returns io.EOF when the stream is exhausted on a frame boundary,
// and io.ErrUnexpectedEOF when the stream ends in the middle of a frame.
func (dec *Decoder) Decode(f *RawFrame) error {
	if dec.err != nil {
		return dec.err
	}

	_, dec.err = io.ReadFull(dec.r, dec.buf)
	if dec.err != nil {
		if xerrors.Is(dec.err, io.EOF) {
			return dec.err
		}
		return xerrors.Errorf("frame: could not read frame #%d: %w", dec.n, dec.err)
	}

	n := dec.n
	dec.n++
	v, err := Decode(dec.buf)
	if err != nil {
		// a corrupted frame does not prevent reading the next one.
		return xerrors.Errorf("frame: could not decode frame #%d: %w", n, err)
	}
	*f = v
	return nil
}

// Raw returns the bytes of the last frame read from the stream.
// The returned slice is only valid until the next call to Decode.
func (dec *Decoder) Raw() []byte { return dec.buf }

// Encoder writes frames to an underlying data sink.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder creates an encoder that writes frames to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes f to the underlying stream.
func (enc *Encoder) Encode(f RawFrame) error {
	p := Encode(f)
	return enc.WriteRaw(p[:])
}

// WriteRaw writes already encoded frame bytes to the underlying stream.
func (enc *Encoder) WriteRaw(p []byte) error {
	if enc.err != nil {
		return enc.err
	}
	if len(p) != Size {
		return &CodecError{Kind: ErrBadLength, Len: len(p)}
	}
	_, enc.err = enc.w.Write(p)
	if enc.err != nil {
		enc.err = xerrors.Errorf("frame: could not write frame: %w", enc.err)
	}
	return enc.err
}
