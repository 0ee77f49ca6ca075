package wsola

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func defaultWSOLAParams() WSOLAParams {
	return WSOLAParams{Tempo: 1.0, SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8}
}

func TestWSOLA_RejectsInvalidParams(t *testing.T) {
	_, err := NewWSOLA(44100, 1, WSOLAParams{Tempo: 0, SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8})
	assert.Error(t, err)

	_, err = NewWSOLA(44100, 1, WSOLAParams{Tempo: 1, SequenceMs: 0, SeekWindowMs: 15, OverlapMs: 8})
	assert.Error(t, err)

	w, err := NewWSOLA(44100, 1, defaultWSOLAParams())
	require.NoError(t, err)
	assert.Error(t, w.SetParameters(WSOLAParams{Tempo: -1, SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8}))
}

func makeSine(freq, sr float64, n int, channels int) []float64 {
	out := make([]float64, n*channels)
	for i := 0; i < n; i++ {
		v := math.Sin(2 * math.Pi * freq * float64(i) / sr)
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

// runWSOLA feeds w a sequence of input windows sliced directly out of a
// single continuous buffer, exactly the way a dispatcher configured with
// w's own SampleRequirement() would assemble them when tempo is held
// constant across the run (each window's leading overlap frames are simply
// the previous window's trailing frames, which slicing the same
// contiguous buffer at a step offset reproduces for free).
func runWSOLA(t *testing.T, w *WSOLA, samples []float64, channels int) [][]float64 {
	sampleReq, overlap := w.SampleRequirement()
	step := sampleReq - overlap
	require.Greater(t, int(step), 0)

	var events [][]float64
	total := SampleIndex(len(samples) / channels)

	for pos := SampleIndex(0); pos+sampleReq <= total; pos += step {
		window := samples[int(pos)*channels : int(pos+sampleReq)*channels]

		e := NewAudioEvent(AudioFormat{SampleRate: 44100, Channels: channels})
		e.Float = append([]float64(nil), window...)
		cont := w.Process(e)
		require.True(t, cont)
		events = append(events, append([]float64(nil), e.Float...))
	}
	return events
}

func TestWSOLA_OutputAndMidLengthsInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		channels := rapid.IntRange(1, 2).Draw(rt, "channels")
		tempo := rapid.Float64Range(0.5, 2.0).Draw(rt, "tempo")

		w, err := NewWSOLA(44100, channels, WSOLAParams{Tempo: tempo, SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8})
		require.NoError(rt, err)

		expectedOutLen := int(w.math.ToArrayIndex(w.seekWindow - w.overlapLen))
		expectedMidLen := int(w.math.ToArrayIndex(w.overlapLen))

		if len(w.outBuf) != expectedOutLen {
			rt.Fatalf("output buffer length %d != expected %d", len(w.outBuf), expectedOutLen)
		}
		if len(w.mid) != expectedMidLen {
			rt.Fatalf("mid buffer length %d != expected %d", len(w.mid), expectedMidLen)
		}

		sampleReq, _ := w.SampleRequirement()
		in := make([]float64, int(w.math.ToArrayIndex(sampleReq)))
		e := NewAudioEvent(AudioFormat{SampleRate: 44100, Channels: channels})
		e.Float = in
		w.Process(e)

		if len(e.Float) != expectedOutLen {
			rt.Fatalf("event output length %d != expected %d", len(e.Float), expectedOutLen)
		}
		if len(w.mid) != expectedMidLen {
			rt.Fatalf("mid buffer length after Process %d != expected %d", len(w.mid), expectedMidLen)
		}
	})
}

func TestWSOLA_TempoOneStaysBoundedAfterRampIn(t *testing.T) {
	channels := 1
	sr := 44100.0
	w, err := NewWSOLA(int(sr), channels, WSOLAParams{Tempo: 1.0, SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8})
	require.NoError(t, err)

	samples := makeSine(1000, sr, 20000, channels)
	events := runWSOLA(t, w, samples, channels)
	require.NotEmpty(t, events)

	// Skip the first couple of events (ramp-in while mid is still partly
	// zero) and confirm later events keep the sine's amplitude bound.
	for _, ev := range events[2:] {
		for _, v := range ev {
			assert.LessOrEqual(t, math.Abs(v), 1.01)
		}
	}
}

func TestWSOLA_Tempo2CompressesDuration(t *testing.T) {
	channels := 1
	sr := 44100.0
	w, err := NewWSOLA(int(sr), channels, WSOLAParams{Tempo: 2.0, SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8})
	require.NoError(t, err)

	samples := makeSine(1000, sr, 44100, channels)
	events := runWSOLA(t, w, samples, channels)

	totalOut := 0
	for _, e := range events {
		totalOut += len(e)
	}
	totalIn := len(samples)

	// At tempo 2.0 the output should run at roughly half the input's
	// duration; allow a generous band since event boundaries are coarse.
	ratio := float64(totalOut) / float64(totalIn)
	assert.Greater(t, ratio, 0.3)
	assert.Less(t, ratio, 0.7)
}

func TestWSOLA_MidStreamTempoChangeUpdatesDispatcherOnce(t *testing.T) {
	channels := 1
	sr := 44100
	w, err := NewWSOLA(sr, channels, defaultWSOLAParams())
	require.NoError(t, err)

	format, err := NewAudioFormat(float64(sr), channels, Encoding{BitDepth: 16, Kind: PCMSigned, Order: LittleEndian})
	require.NoError(t, err)

	src := newMemSource(t, format, make([]float64, 1<<20))
	chain := NewProcessorChain()
	sampleReq, overlap := w.SampleRequirement()
	d, err := NewAudioDispatcher(src, chain, sampleReq, overlap, false, true)
	require.NoError(t, err)
	w.SetDispatcher(d)

	oldReq, oldOverlap := sampleReq, overlap
	require.NoError(t, w.SetParameters(WSOLAParams{Tempo: 1.5, SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8}))

	in := make([]float64, int(w.math.ToArrayIndex(oldReq)))
	e := NewAudioEvent(format)
	e.Float = in
	w.Process(e)

	newReq, newOverlap := w.SampleRequirement()
	assert.NotEqual(t, oldReq, newReq)
	// The dispatcher overlap is sample_req - int_skip, which equals
	// overlapLen + seek whenever int_skip + overlapLen >= seekWindow; that
	// holds at both tempo 1.0 and 1.5, so only the buffer size changes.
	assert.Equal(t, oldOverlap, newOverlap)
	assert.Equal(t, newReq, d.bufferSize)
	assert.Equal(t, newOverlap, d.overlap)
}
