package wsola

import "fmt"

// SampleIndex counts frames (one per channel, interleaved) rather than
// individual array slots. Keeping it a distinct type from ArrayIndex is
// what prevents an errant *channels or /channels from silently compiling:
// the two only convert through SampleMath.
type SampleIndex int

// ArrayIndex counts individual float64 slots in an interleaved buffer —
// channels * SampleIndex.
type ArrayIndex int

// SampleMath binds a channel count to the conversions between SampleIndex
// and ArrayIndex, and to the handful of arithmetic operations (duration,
// ms-to-samples) that need it.
type SampleMath struct {
	channels int
}

// NewSampleMath builds a SampleMath for the given channel count. Panics on
// a non-positive channel count since no legal AudioFormat allows one.
func NewSampleMath(channels int) SampleMath {
	if channels <= 0 {
		panic(fmt.Sprintf("wsola: invalid channel count %d", channels))
	}
	return SampleMath{channels: channels}
}

// Channels returns the channel count this SampleMath was built with.
func (m SampleMath) Channels() int {
	return m.channels
}

// ToArrayIndex converts a frame count to an interleaved slot count.
func (m SampleMath) ToArrayIndex(s SampleIndex) ArrayIndex {
	return ArrayIndex(int(s) * m.channels)
}

// ToSampleIndex converts an interleaved slot count down to a frame count,
// truncating toward zero if a is not a whole multiple of the channel count.
func (m SampleMath) ToSampleIndex(a ArrayIndex) SampleIndex {
	return SampleIndex(int(a) / m.channels)
}

// MsToSamples converts a duration in milliseconds to a frame count at the
// given sample rate, rounding to the nearest frame.
func (m SampleMath) MsToSamples(ms float64, sampleRate int) SampleIndex {
	if ms <= 0 {
		return 0
	}
	frames := ms * float64(sampleRate) / 1000.0
	return SampleIndex(int(frames + 0.5))
}

// SamplesToMs converts a frame count at the given sample rate to a duration
// in milliseconds.
func (m SampleMath) SamplesToMs(s SampleIndex, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(s) * 1000.0 / float64(sampleRate)
}
