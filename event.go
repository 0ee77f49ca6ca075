package wsola

import "fmt"

// AudioEvent is the per-call carrier threaded through a ProcessorChain. The
// dispatcher owns and mutates it once per loop iteration; processors mutate
// Float (and may replace it outright) during process() and the mutation is
// visible to every processor downstream in the same chain pass.
type AudioEvent struct {
	// Float is the current interleaved sample buffer, length = frames*Channels.
	Float []float64
	// Bytes is the dispatcher's raw byte buffer for this event. Its tail
	// after the overlap region holds the bytes just read and decoded into
	// Float; the leading overlap region is not shifted between reads, so it
	// does not mirror Float's overlap prefix. Processors that replace Float
	// wholesale (WSOLA, the resampler) do not keep Bytes in sync, and the
	// terminal sink writer encodes the final Float into its own buffer
	// rather than using Bytes.
	Bytes []byte
	// Overlap is how many leading samples (frames, not array slots) of
	// Float duplicate the previous event's trailing samples.
	Overlap SampleIndex
	// BytesProcessed is the dispatcher's monotonic post-skip byte count as
	// of the read that produced this event.
	BytesProcessed int64
	// Channels is the channel count Float is interleaved with.
	Channels int
	// RatioOutToIn is the output-to-input sample-rate ratio contributed by
	// rate-changing stages (1/tempo for WSOLA, factor for the resampler),
	// accumulated multiplicatively as the event passes through the chain.
	RatioOutToIn float64

	format AudioFormat
	math   SampleMath
}

// NewAudioEvent builds an AudioEvent for the given format, with an initially
// empty buffer and a ratio of 1 (no rate change yet applied).
func NewAudioEvent(format AudioFormat) *AudioEvent {
	return &AudioEvent{
		Channels:     format.Channels,
		RatioOutToIn: 1,
		format:       format,
		math:         NewSampleMath(format.Channels),
	}
}

// Format returns the AudioFormat this event was constructed with.
func (e *AudioEvent) Format() AudioFormat {
	return e.format
}

// SampleMath returns the channel-aware index converter for this event.
func (e *AudioEvent) SampleMath() SampleMath {
	return e.math
}

// SampleCount returns the number of frames currently held in Float.
func (e *AudioEvent) SampleCount() SampleIndex {
	return e.math.ToSampleIndex(ArrayIndex(len(e.Float)))
}

// TimeStamp returns the stream position, in seconds, of this event:
// bytes-processed scaled by the frame size and sample rate, further scaled
// by the cumulative output-to-input ratio contributed by rate-changing
// stages upstream in the chain.
func (e *AudioEvent) TimeStamp() float64 {
	frameSize := float64(e.format.FrameSize())
	if frameSize == 0 || e.format.SampleRate == 0 {
		return 0
	}
	return float64(e.BytesProcessed) / (frameSize * e.format.SampleRate) * e.RatioOutToIn
}

// Validate checks the invariants every event must satisfy between processor
// calls: the buffer length is a whole number of frames, and Overlap never
// reaches or exceeds the frame count.
func (e *AudioEvent) Validate() error {
	if len(e.Float)%e.Channels != 0 {
		return fmt.Errorf("wsola: event float buffer length %d not a multiple of channels %d", len(e.Float), e.Channels)
	}
	sc := e.SampleCount()
	if sc > 0 && e.Overlap >= sc {
		return fmt.Errorf("wsola: event overlap %d >= sample count %d", e.Overlap, e.SampleCount())
	}
	return nil
}
