// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

// ring is a fixed-capacity FIFO.
// Pushing onto a full ring overwrites its oldest element.
type ring[T any] struct {
	data []T
	head int // index of the oldest element
	n    int // number of stored elements
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{data: make([]T, capacity)}
}

func (r *ring[T]) len() int { return r.n }
func (r *ring[T]) cap() int { return len(r.data) }

// push appends v and reports whether the oldest element was evicted.
func (r *ring[T]) push(v T) bool {
	if len(r.data) == 0 {
		return false
	}
	if r.n < len(r.data) {
		r.data[(r.head+r.n)%len(r.data)] = v
		r.n++
		return false
	}
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	return true
}

// at returns the i-th oldest element.
func (r *ring[T]) at(i int) T {
	return r.data[(r.head+i)%len(r.data)]
}

// tail copies the n most recent elements, oldest first.
func (r *ring[T]) tail(n int) []T {
	if n > r.n {
		n = r.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	beg := r.n - n
	for i := range out {
		out[i] = r.at(beg + i)
	}
	return out
}

// truncate drops the oldest elements so that at most n remain.
func (r *ring[T]) truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= r.n {
		return
	}
	var zero T
	drop := r.n - n
	for i := 0; i < drop; i++ {
		r.data[(r.head+i)%len(r.data)] = zero
	}
	r.head = (r.head + drop) % len(r.data)
	r.n = n
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.n = 0
}
