package wsola

// FloatBuffer is a channel-aware wrapper around RingBuffer[float64]: every
// operation is expressed in frames (SampleIndex) rather than raw array
// slots, with the channel multiplication going through SampleMath so no
// caller ever has to remember to multiply by the channel count.
type FloatBuffer struct {
	ring *RingBuffer[float64]
	math SampleMath
}

// NewFloatBuffer returns an empty FloatBuffer for the given channel count,
// with room for initialFrames without an early reallocation.
func NewFloatBuffer(channels int, initialFrames int) *FloatBuffer {
	m := NewSampleMath(channels)
	return &FloatBuffer{
		ring: NewRingBuffer[float64](int(m.ToArrayIndex(SampleIndex(initialFrames)))),
		math: m,
	}
}

// Frames returns the number of frames currently held.
func (f *FloatBuffer) Frames() SampleIndex {
	return f.math.ToSampleIndex(ArrayIndex(f.ring.Len()))
}

// Samples returns a slice view (not a copy) of the currently held frames,
// interleaved. Callers that mutate it are mutating the buffer's own
// backing storage.
func (f *FloatBuffer) Samples() []float64 {
	return f.ring.Buffer()
}

// Reset empties the buffer.
func (f *FloatBuffer) Reset() {
	f.ring.Reset()
}

// WriteFrames appends samples (an interleaved slice whose length must be a
// whole number of frames) to the buffer.
func (f *FloatBuffer) WriteFrames(samples []float64) error {
	return f.ring.WriteSlice(samples)
}

// WriteZeroFrames appends n frames of silence.
func (f *FloatBuffer) WriteZeroFrames(n SampleIndex) error {
	if n <= 0 {
		return nil
	}
	return f.ring.WriteEmpty(int(f.math.ToArrayIndex(n)))
}

// RetainTail drops every frame except the last n, in place. This is the
// dispatcher's "shift the overlap down" step: instead of copying the tail
// to the front of a fixed array, the ring buffer's read offset simply
// advances past everything but the retained tail, and subsequent writes
// land contiguously after it.
func (f *FloatBuffer) RetainTail(n SampleIndex) error {
	total := f.Frames()
	if n >= total {
		return nil
	}
	drop := total - n
	return f.ring.DropSlice(int(f.math.ToArrayIndex(drop)))
}

// DropFrames drops the first n frames from the buffer.
func (f *FloatBuffer) DropFrames(n SampleIndex) error {
	return f.ring.DropSlice(int(f.math.ToArrayIndex(n)))
}
