// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

// Package utilds holds small generic data structures shared across the
// module.
package utilds

// CirBuf is a fixed-capacity circular buffer that overwrites its oldest
// element when full. It keeps the most recent maxSize writes and is not
// safe for concurrent use; the replay loop is single-threaded.
type CirBuf[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int
}

// NewCirBuf creates a circular buffer keeping the last maxSize elements.
func NewCirBuf[T any](maxSize int) *CirBuf[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &CirBuf[T]{buf: make([]T, maxSize)}
}

// Write appends an element, overwriting the oldest when full.
func (cb *CirBuf[T]) Write(element T) {
	if cb.count < len(cb.buf) {
		cb.buf[(cb.head+cb.count)%len(cb.buf)] = element
		cb.count++
		return
	}
	cb.buf[cb.head] = element
	cb.head = (cb.head + 1) % len(cb.buf)
}

// Size returns the number of elements currently held.
func (cb *CirBuf[T]) Size() int {
	return cb.count
}

// Last returns the most recently written element.
func (cb *CirBuf[T]) Last() (T, bool) {
	var zero T
	if cb.count == 0 {
		return zero, false
	}
	return cb.buf[(cb.head+cb.count-1)%len(cb.buf)], true
}

// Items returns the held elements oldest-first as a fresh slice.
func (cb *CirBuf[T]) Items() []T {
	out := make([]T, cb.count)
	for i := 0; i < cb.count; i++ {
		out[i] = cb.buf[(cb.head+i)%len(cb.buf)]
	}
	return out
}
