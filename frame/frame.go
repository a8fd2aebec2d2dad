// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame describes and handles the binary telemetry frames
// emitted by the PID controller debug stream.
package frame // import "github.com/go-lpc/pidtel/frame"

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"golang.org/x/xerrors"
)

const (
	Size  = 32         // size of a frame on the wire, in bytes
	Magic = 0xDEADBEEF // frame start marker
)

var (
	ErrBadLength = xerrors.New("frame: invalid frame length")
	ErrBadMagic  = xerrors.New("frame: invalid frame magic")
)

// CodecError describes why a datagram could not be decoded into a frame.
type CodecError struct {
	Kind  error  // ErrBadLength or ErrBadMagic
	Len   int    // length of the rejected datagram
	Magic uint32 // magic word found, for ErrBadMagic
}

func (e *CodecError) Error() string {
	switch e.Kind {
	case ErrBadMagic:
		return fmt.Sprintf("%v (got=0x%08x, want=0x%08x)", e.Kind, e.Magic, uint32(Magic))
	default:
		return fmt.Sprintf("%v (got=%d, want=%d)", e.Kind, e.Len, Size)
	}
}

func (e *CodecError) Unwrap() error { return e.Kind }

// RawFrame is one control-loop tick as sent by the controller.
type RawFrame struct {
	Magic    uint32
	Seq      uint32
	Setpoint float32
	Error    float32
	P        float32
	I        float32
	D        float32
	Output   float32
}

// Decode decodes a 32-byte little-endian datagram.
// Datagrams are never trimmed nor padded: any other length is rejected.
func Decode(p []byte) (RawFrame, error) {
	if len(p) != Size {
		return RawFrame{}, &CodecError{Kind: ErrBadLength, Len: len(p)}
	}

	magic := binary.LittleEndian.Uint32(p[0:4])
	if magic != Magic {
		return RawFrame{}, &CodecError{Kind: ErrBadMagic, Len: len(p), Magic: magic}
	}

	return RawFrame{
		Magic:    magic,
		Seq:      binary.LittleEndian.Uint32(p[4:8]),
		Setpoint: f32(p[8:12]),
		Error:    f32(p[12:16]),
		P:        f32(p[16:20]),
		I:        f32(p[20:24]),
		D:        f32(p[24:28]),
		Output:   f32(p[28:32]),
	}, nil
}

// Encode encodes f into its wire representation.
func Encode(f RawFrame) [Size]byte {
	var p [Size]byte
	binary.LittleEndian.PutUint32(p[0:4], f.Magic)
	binary.LittleEndian.PutUint32(p[4:8], f.Seq)
	binary.LittleEndian.PutUint32(p[8:12], math.Float32bits(f.Setpoint))
	binary.LittleEndian.PutUint32(p[12:16], math.Float32bits(f.Error))
	binary.LittleEndian.PutUint32(p[16:20], math.Float32bits(f.P))
	binary.LittleEndian.PutUint32(p[20:24], math.Float32bits(f.I))
	binary.LittleEndian.PutUint32(p[24:28], math.Float32bits(f.D))
	binary.LittleEndian.PutUint32(p[28:32], math.Float32bits(f.Output))
	return p
}

// New returns a frame with a valid magic word.
func New(seq uint32, setpoint, err, p, i, d, output float32) RawFrame {
	return RawFrame{
		Magic:    Magic,
		Seq:      seq,
		Setpoint: setpoint,
		Error:    err,
		P:        p,
		I:        i,
		D:        d,
		Output:   output,
	}
}

func (f RawFrame) MarshalBinary() ([]byte, error) {
	p := Encode(f)
	return p[:], nil
}

func (f *RawFrame) UnmarshalBinary(p []byte) error {
	v, err := Decode(p)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Hex formats raw frame bytes the way the diagnostic view displays them:
// upper-case hexadecimal octets separated by a single space.
func Hex(p []byte) string {
	const digits = "0123456789ABCDEF"
	var o strings.Builder
	o.Grow(3 * len(p))
	for i, v := range p {
		if i > 0 {
			o.WriteByte(' ')
		}
		o.WriteByte(digits[v>>4])
		o.WriteByte(digits[v&0xf])
	}
	return o.String()
}

func (f RawFrame) String() string {
	p := Encode(f)
	return Hex(p[:])
}

func f32(p []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p))
}
