package wsola

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormat(t *testing.T) AudioFormat {
	f, err := NewAudioFormat(44100, 2, Encoding{BitDepth: 16, Kind: PCMSigned, Order: LittleEndian})
	require.NoError(t, err)
	return f
}

func TestAudioEvent_SampleCount(t *testing.T) {
	e := NewAudioEvent(testFormat(t))
	e.Float = make([]float64, 8) // 4 frames * 2 channels
	assert.Equal(t, SampleIndex(4), e.SampleCount())
}

func TestAudioEvent_TimeStamp(t *testing.T) {
	f := testFormat(t)
	e := NewAudioEvent(f)
	e.BytesProcessed = int64(f.FrameSize()) * 44100 // exactly one second of frames
	e.RatioOutToIn = 1
	assert.InDelta(t, 1.0, e.TimeStamp(), 1e-9)

	e.RatioOutToIn = 0.5
	assert.InDelta(t, 0.5, e.TimeStamp(), 1e-9)
}

func TestAudioEvent_ValidateCatchesBadBufferLength(t *testing.T) {
	e := NewAudioEvent(testFormat(t))
	e.Float = make([]float64, 3) // not a multiple of 2 channels
	assert.Error(t, e.Validate())
}

func TestAudioEvent_ValidateCatchesOverlapTooLarge(t *testing.T) {
	e := NewAudioEvent(testFormat(t))
	e.Float = make([]float64, 8) // 4 frames
	e.Overlap = 4
	assert.Error(t, e.Validate())

	e.Overlap = 3
	assert.NoError(t, e.Validate())
}
