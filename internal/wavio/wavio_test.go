package wavio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	wsola "github.com/waveforge/wsola-go"
)

func writeTestWAV(t *testing.T, path string, sampleRate, channels, bitDepth int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, enc.Close())
}

func TestFileSource_FormatAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.wav")
	samples := []int{0, 100, -100, 200, -200, 300}
	writeTestWAV(t, path, 44100, 1, 16, samples)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	format := src.Format()
	require.Equal(t, float64(44100), format.SampleRate)
	require.Equal(t, 1, format.Channels)
	require.Equal(t, 16, format.Enc.BitDepth)

	buf := make([]byte, format.Enc.BytesPerSample()*len(samples))
	n, err := src.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	got := make([]float64, len(samples))
	require.NoError(t, wsola.DecodeBytes(buf, format.Enc, got))
	for i, s := range samples {
		want := float64(s) / 32768.0
		require.InDelta(t, want, got[i], 1e-4)
	}
}

func TestFileSource_SkipAdvancesStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.wav")
	samples := []int{10, 20, 30, 40}
	writeTestWAV(t, path, 44100, 1, 16, samples)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	frameBytes := src.Format().Enc.BytesPerSample()
	skipped, err := src.Skip(int64(2 * frameBytes))
	require.NoError(t, err)
	require.Equal(t, int64(2*frameBytes), skipped)

	buf := make([]byte, 2*frameBytes)
	n, err := src.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	got := make([]float64, 2)
	require.NoError(t, wsola.DecodeBytes(buf, src.Format().Enc, got))
	require.InDelta(t, 30.0/32768.0, got[0], 1e-4)
	require.InDelta(t, 40.0/32768.0, got[1], 1e-4)
}

func TestFileSink_WriteProducesReadablePlaybackFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	format, err := wsola.NewAudioFormat(44100, 1, wsola.Encoding{BitDepth: 16, Kind: wsola.PCMSigned, Order: wsola.LittleEndian})
	require.NoError(t, err)

	sink, err := Create(path, format)
	require.NoError(t, err)

	floats := []float64{0, 0.1, -0.1, 0.5}
	buf := make([]byte, len(floats)*format.Enc.BytesPerSample())
	require.NoError(t, wsola.EncodeBytes(floats, format.Enc, buf))

	n, err := sink.Write(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.NoError(t, sink.Close())

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	readBuf := make([]byte, len(buf))
	n, err = src.Read(readBuf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	got := make([]float64, len(floats))
	require.NoError(t, wsola.DecodeBytes(readBuf, format.Enc, got))
	for i, want := range floats {
		require.InDelta(t, want, got[i], 1e-3)
	}
}
