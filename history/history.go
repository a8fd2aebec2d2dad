// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package history holds the bounded rolling history of decoded telemetry
// samples, shared between the ingestion goroutine and its readers.
package history // import "github.com/go-lpc/pidtel/history"

import (
	"sync"
	"time"

	"github.com/go-lpc/pidtel/frame"
	"github.com/go-lpc/pidtel/seqtrk"
)

// DefaultCapacity is the default maximum number of samples (and raw frames)
// retained by a Buffer.
const DefaultCapacity = 10000

// Sample is a decoded, timestamped telemetry frame.
type Sample struct {
	Seq      uint32
	RecvAt   time.Time
	Setpoint float32
	Error    float32
	P        float32
	I        float32
	D        float32
	Output   float32
}

// NewSample creates the sample for frame f received at time t.
func NewSample(f frame.RawFrame, t time.Time) Sample {
	return Sample{
		Seq:      f.Seq,
		RecvAt:   t,
		Setpoint: f.Setpoint,
		Error:    f.Error,
		P:        f.P,
		I:        f.I,
		D:        f.D,
		Output:   f.Output,
	}
}

// Raw holds the wire bytes of an accepted frame.
type Raw = [frame.Size]byte

// Buffer is a bounded, arrival-ordered history of samples together with
// the raw frames they were decoded from and the lost-frames accounting.
//
// Samples are appended by a single producer. All methods are safe for
// concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	samples ring[Sample]
	raws    ring[Raw]
	trk     *seqtrk.Tracker
	lost    uint64
	gen     uint64 // incremented at each Clear

	obs struct {
		mu  sync.Mutex
		id  int
		fct map[int]func(Sample)

		// run serializes notifications with Clear.
		run sync.Mutex
	}
}

// New creates a history buffer retaining at most capacity samples and
// capacity raw frames. A non-positive capacity selects DefaultCapacity.
func New(capacity int, mode seqtrk.Mode) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	buf := &Buffer{
		samples: newRing[Sample](capacity),
		raws:    newRing[Raw](capacity),
		trk:     seqtrk.New(mode),
	}
	buf.obs.fct = make(map[int]func(Sample))
	return buf
}

// Append inserts s at the end of the history, evicting the oldest sample
// when the buffer is full.
func (buf *Buffer) Append(s Sample) {
	buf.mu.Lock()
	buf.samples.push(s)
	gen := buf.gen
	buf.mu.Unlock()

	buf.notify(s, gen)
}

// AppendRaw inserts the raw frame bytes at the end of the raw history,
// evicting the oldest raw frame when the raw history is full.
func (buf *Buffer) AppendRaw(raw Raw) {
	buf.mu.Lock()
	buf.raws.push(raw)
	buf.mu.Unlock()
}

// Record ingests one accepted frame: it stores its raw bytes, accounts
// for the frames lost since the previous one and appends the decoded
// sample received at time t.
// The three steps happen atomically with respect to Clear.
// Record returns the number of frames lost just before this one.
func (buf *Buffer) Record(raw Raw, f frame.RawFrame, t time.Time) uint32 {
	s := NewSample(f, t)

	buf.mu.Lock()
	buf.raws.push(raw)
	lost := buf.trk.Observe(f.Seq)
	buf.lost += uint64(lost)
	buf.samples.push(s)
	gen := buf.gen
	buf.mu.Unlock()

	buf.notify(s, gen)
	return lost
}

// Snapshot returns a copy of the samples currently held, oldest first.
func (buf *Buffer) Snapshot() []Sample {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.samples.tail(buf.samples.len())
}

// Tail returns a copy of the n most recent samples, oldest first.
func (buf *Buffer) Tail(n int) []Sample {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.samples.tail(n)
}

// Raw returns a copy of the raw frames currently held, oldest first.
func (buf *Buffer) Raw() []Raw {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.raws.tail(buf.raws.len())
}

// TruncateRaw drops the oldest raw frames so that at most n remain.
// Samples are left untouched.
func (buf *Buffer) TruncateRaw(n int) {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.raws.truncate(n)
}

// Clear drops all samples and raw frames, resets the lost-frames counter
// and forgets the last sequence number.
// Once Clear returns, observers are not notified of samples appended
// before the call.
func (buf *Buffer) Clear() {
	buf.obs.run.Lock()
	defer buf.obs.run.Unlock()

	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.samples.reset()
	buf.raws.reset()
	buf.trk.Reset()
	buf.lost = 0
	buf.gen++
}

// Len returns the number of samples held.
func (buf *Buffer) Len() int {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.samples.len()
}

// RawLen returns the number of raw frames held.
func (buf *Buffer) RawLen() int {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.raws.len()
}

func (buf *Buffer) IsEmpty() bool { return buf.Len() == 0 }

// Cap returns the maximum number of samples the buffer retains.
func (buf *Buffer) Cap() int { return buf.samples.cap() }

// LostPackets returns the number of frames lost since the buffer
// was created or last cleared.
func (buf *Buffer) LostPackets() uint64 {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.lost
}

// Reordered returns the number of duplicate or backward frames seen
// since the buffer was created or last cleared (lenient mode only).
func (buf *Buffer) Reordered() uint64 {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.trk.Reordered()
}

// Generation returns the number of times the buffer has been cleared.
func (buf *Buffer) Generation() uint64 {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.gen
}

// Subscribe registers f to be called with every appended sample.
// f runs on the producer goroutine and must not block nor call Clear.
// Samples dropped by a concurrent Clear may not be notified.
// The returned function unregisters f.
func (buf *Buffer) Subscribe(f func(Sample)) (cancel func()) {
	buf.obs.mu.Lock()
	defer buf.obs.mu.Unlock()
	id := buf.obs.id
	buf.obs.id++
	buf.obs.fct[id] = f

	var once sync.Once
	return func() {
		once.Do(func() {
			buf.obs.mu.Lock()
			defer buf.obs.mu.Unlock()
			delete(buf.obs.fct, id)
		})
	}
}

// notify calls the observers with s, appended at generation gen.
func (buf *Buffer) notify(s Sample, gen uint64) {
	buf.obs.mu.Lock()
	if len(buf.obs.fct) == 0 {
		buf.obs.mu.Unlock()
		return
	}
	fcts := make([]func(Sample), 0, len(buf.obs.fct))
	for _, f := range buf.obs.fct {
		fcts = append(fcts, f)
	}
	buf.obs.mu.Unlock()

	buf.obs.run.Lock()
	defer buf.obs.run.Unlock()
	if buf.Generation() != gen {
		// cleared in the meantime.
		return
	}
	for _, f := range fcts {
		f(s)
	}
}
