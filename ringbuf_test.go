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

package wsola

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_WriteSlice(t *testing.T) {
	b := &RingBuffer[int]{}
	slice := []int{1, 2, 3, 4, 5}

	require.NoError(t, b.WriteSlice(slice))
	assert.Equal(t, slice, b.buf)
}

func TestRingBuffer_WriteSliceGrowsPastInitialCapacity(t *testing.T) {
	b := NewRingBuffer[int](2)
	require.NoError(t, b.WriteSlice([]int{1, 2, 3, 4, 5}))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.Buffer())
}

func TestRingBuffer_WriteEmpty(t *testing.T) {
	b := &RingBuffer[float64]{}
	require.NoError(t, b.WriteEmpty(3))
	assert.Equal(t, []float64{0, 0, 0}, b.Buffer())

	require.NoError(t, b.WriteSlice([]float64{1, 2}))
	assert.Equal(t, []float64{0, 0, 0, 1, 2}, b.Buffer())
}

func TestRingBuffer_DropSliceRetainsTail(t *testing.T) {
	b := NewRingBuffer[float64](0)
	require.NoError(t, b.WriteSlice([]float64{0.1, 0.2, 0.3, 0.4}))

	// Retain the last 2 elements as the overlap tail, then append new
	// samples behind them — the shape the dispatcher's read loop relies on.
	require.NoError(t, b.DropSlice(b.Len()-2))
	assert.Equal(t, []float64{0.3, 0.4}, b.Buffer())

	require.NoError(t, b.WriteSlice([]float64{0.5, 0.6}))
	assert.Equal(t, []float64{0.3, 0.4, 0.5, 0.6}, b.Buffer())
}

func TestRingBuffer_DropSliceClampsToLen(t *testing.T) {
	b := NewRingBuffer[int](0)
	require.NoError(t, b.WriteSlice([]int{1, 2, 3}))
	require.NoError(t, b.DropSlice(10))
	assert.Equal(t, 0, b.Len())
}

func TestRingBuffer_Reset(t *testing.T) {
	b := NewRingBuffer[int](0)
	require.NoError(t, b.WriteSlice([]int{1, 2, 3}))
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Buffer())
}
