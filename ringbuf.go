// Copyright (c) 2023 Alexander Khudich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// NOTE: The code in this file has been adapted from the "bytes"
// package of the Go standard library
//
// The original copyright notice from the Go project for these parts is
// reproduced here:
//
// ========================================================================
// Copyright (c) 2009 The Go Authors. All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are
// met:
//
//    * Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//    * Redistributions in binary form must reproduce the above
// copyright notice, this list of conditions and the following disclaimer
// in the documentation and/or other materials provided with the
// distribution.
//    * Neither the name of Google Inc. nor the names of its
// contributors may be used to endorse or promote products derived from
// this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
// "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
// LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
// A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
// OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
// LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
// ========================================================================

package wsola

import (
	"errors"
	"io"
)

// smallBufferSize is the initial allocation for a buffer grown from nil.
const smallBufferSize = 64

// ErrTooLarge is raised if memory cannot be allocated to store data in a RingBuffer.
var ErrTooLarge = errors.New("wsola: buffer too large")

// maxInt is the maximum positive value of int on this platform.
const maxInt = int(^uint(0) >> 1)

// RingBuffer is a generic variable-sized queue. It underlies FloatBuffer,
// which adds channel-aware indexing on top, but has no sample-rate or
// channel-count knowledge of its own.
type RingBuffer[T any] struct {
	buf []T // contents are the elements buf[off : len(buf)]
	off int // read at &buf[off], write at &buf[len(buf)]
}

// NewRingBuffer creates a RingBuffer with the given initial capacity.
func NewRingBuffer[T any](initialCap int) *RingBuffer[T] {
	return &RingBuffer[T]{buf: make([]T, 0, initialCap)}
}

// Buffer returns a slice of length b.Len() holding the unread portion of the buffer.
func (b *RingBuffer[T]) Buffer() []T {
	return b.buf[b.off:]
}

// Len returns the number of elements in the unread portion of the buffer.
func (b *RingBuffer[T]) Len() int {
	return len(b.buf) - b.off
}

// isEmpty reports whether the unread portion of the buffer is empty.
func (b *RingBuffer[T]) isEmpty() bool {
	return len(b.buf) <= b.off
}

// Reset resets the buffer to be empty.
func (b *RingBuffer[T]) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
}

// WriteSlice appends the elements of slice to the buffer, growing the buffer as needed.
func (b *RingBuffer[T]) WriteSlice(slice []T) error {
	if len(slice) == 0 {
		return nil
	}

	m, ok := b.tryGrowByReslice(len(slice))
	if !ok {
		m = b.grow(len(slice))
	}
	copy(b.buf[m:], slice)

	return nil
}

// WriteEmpty appends n zero-valued elements to the buffer.
func (b *RingBuffer[T]) WriteEmpty(n int) error {
	if n <= 0 {
		return nil
	}
	m, ok := b.tryGrowByReslice(n)
	if !ok {
		m = b.grow(n)
	}
	var zero T
	for i := m; i < m+n; i++ {
		b.buf[i] = zero
	}
	return nil
}

// DropSlice drops the next n elements from the buffer without returning them.
// Dropping fewer elements than the buffer holds, e.g. DropSlice(Len()-overlap),
// is how the dispatcher retains an overlap tail in place of a full Reset.
func (b *RingBuffer[T]) DropSlice(n int) error {
	if b.isEmpty() {
		b.Reset()
		return io.EOF
	}
	m := b.Len()
	if n > m {
		n = m
	}
	b.off += n
	return nil
}

// tryGrowByReslice is an inlineable version of grow for the fast case where the
// internal buffer only needs to be resliced.
func (b *RingBuffer[T]) tryGrowByReslice(n int) (int, bool) {
	if l := len(b.buf); n <= cap(b.buf)-l {
		b.buf = b.buf[:l+n]
		return l, true
	}
	return 0, false
}

// growSlice grows b by n elements and returns the new slice.
func growSlice[T any](b []T, n int) []T {
	defer func() {
		if recover() != nil {
			panic(ErrTooLarge)
		}
	}()
	c := len(b) + n
	if c < 2*cap(b) {
		c = 2 * cap(b)
	}
	b2 := append([]T(nil), make([]T, c)...)
	copy(b2, b)
	return b2[:len(b)]
}

// grow grows the buffer to guarantee space for n more elements and returns
// the index where the new elements should be written.
func (b *RingBuffer[T]) grow(n int) int {
	m := b.Len()
	if m == 0 && b.off != 0 {
		b.Reset()
	}
	if i, ok := b.tryGrowByReslice(n); ok {
		return i
	}
	if b.buf == nil && n <= smallBufferSize {
		b.buf = make([]T, n, smallBufferSize)
		return 0
	}
	c := cap(b.buf)
	if n <= c/2-m {
		// Slide the unread portion down instead of allocating, but let
		// capacity double so this doesn't turn into an O(n^2) copy loop.
		copy(b.buf, b.buf[b.off:])
	} else if c > maxInt-c-n {
		panic(ErrTooLarge)
	} else {
		b.buf = growSlice(b.buf[b.off:], b.off+n)
	}
	b.off = 0
	b.buf = b.buf[:m+n]
	return m
}
