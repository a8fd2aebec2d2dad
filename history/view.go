// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

// View gives access to a Buffer without the ability to append to it.
// The producer owning the Buffer remains its only writer; holders of a
// View may read it, subscribe to it and clear it.
type View struct {
	buf *Buffer
}

// View returns a read-only view of buf.
func (buf *Buffer) View() View { return View{buf: buf} }

func (v View) Snapshot() []Sample { return v.buf.Snapshot() }
func (v View) Tail(n int) []Sample { return v.buf.Tail(n) }
func (v View) Raw() []Raw { return v.buf.Raw() }
func (v View) Len() int { return v.buf.Len() }
func (v View) RawLen() int { return v.buf.RawLen() }
func (v View) IsEmpty() bool { return v.buf.IsEmpty() }
func (v View) Cap() int { return v.buf.Cap() }
func (v View) LostPackets() uint64 { return v.buf.LostPackets() }
func (v View) Reordered() uint64 { return v.buf.Reordered() }
func (v View) Generation() uint64 { return v.buf.Generation() }
func (v View) Clear() { v.buf.Clear() }
func (v View) Subscribe(f func(Sample)) (cancel func()) { return v.buf.Subscribe(f) }
