// Package wavio adapts WAV files to the core engine's ByteSource/AudioSink
// contracts (spec §6 "External interfaces"). File-format parsing is
// deliberately kept out of the wsola package itself; this is the one place
// it happens, built on go-audio/wav, go-audio/audio, and (transitively)
// go-audio/riff, the same stack the teacher's cmd/sonic-go tool used.
package wavio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	wsola "github.com/waveforge/wsola-go"
)

// intBufFrames is the frame count PCMBuffer is asked to fill per call;
// large enough to amortize decoder overhead, small enough to keep memory
// bounded for long files.
const intBufFrames = 4096

// FileSource is a wsola.ByteSource backed by a WAV file on disk: it decodes
// PCM samples via go-audio/wav's frame-oriented decoder and re-serializes
// them into the raw interleaved bytes the dispatcher's DecodeBytes expects,
// buffering the tail of each decoded chunk across Read calls.
type FileSource struct {
	f       *os.File
	dec     *wav.Decoder
	format  wsola.AudioFormat
	intBuf  *audio.IntBuffer
	pending []byte
	eof     bool
}

// Open opens name as a WAV file and returns a FileSource ready to Read.
func Open(name string) (*FileSource, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("wavio: open %q: %w", name, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wavio: %q is not a valid WAV file", name)
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("wavio: reading header of %q: %w", name, err)
	}

	enc := wsola.Encoding{
		BitDepth: int(dec.BitDepth),
		Kind:     wsola.PCMSigned,
		Order:    wsola.LittleEndian,
	}
	format, err := wsola.NewAudioFormat(float64(dec.SampleRate), int(dec.NumChans), enc)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wavio: %q: %w", name, err)
	}

	return &FileSource{
		f:      f,
		dec:    dec,
		format: format,
		intBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
			Data:           make([]int, intBufFrames*int(dec.NumChans)),
			SourceBitDepth: int(dec.BitDepth),
		},
	}, nil
}

// Format implements wsola.ByteSource.
func (s *FileSource) Format() wsola.AudioFormat {
	return s.format
}

// Read implements wsola.ByteSource (and io.Reader): it serves from any
// buffered tail first, then decodes further frames as needed, returning
// io.EOF once the decoder has nothing left and the tail is exhausted.
func (s *FileSource) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if len(s.pending) == 0 {
			if s.eof {
				if total > 0 {
					return total, nil
				}
				return 0, io.EOF
			}
			if err := s.fill(); err != nil {
				return total, err
			}
			if len(s.pending) == 0 {
				s.eof = true
				continue
			}
		}
		n := copy(p[total:], s.pending)
		s.pending = s.pending[n:]
		total += n
	}
	return total, nil
}

// fill decodes the next chunk of frames from the WAV file into s.pending as
// raw bytes in the declared encoding.
func (s *FileSource) fill() error {
	n, err := s.dec.PCMBuffer(s.intBuf)
	if err != nil {
		return fmt.Errorf("wavio: decode: %w", err)
	}
	if n == 0 {
		return nil
	}
	bps := s.format.Enc.BytesPerSample()
	floats := make([]float64, n)
	scale := float64(int64(1) << (uint(s.format.Enc.BitDepth) - 1))
	for i := 0; i < n; i++ {
		floats[i] = float64(s.intBuf.Data[i]) / scale
	}
	buf := make([]byte, n*bps)
	if err := wsola.EncodeBytes(floats, s.format.Enc, buf); err != nil {
		return fmt.Errorf("wavio: re-encoding decoded frames: %w", err)
	}
	s.pending = append(s.pending, buf...)
	return nil
}

// Skip implements wsola.ByteSource by decoding and discarding frames until
// n bytes' worth have been consumed.
func (s *FileSource) Skip(n int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var skipped int64
	for skipped < n {
		want := n - skipped
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		got, err := s.Read(buf[:want])
		skipped += int64(got)
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			return skipped, err
		}
		if got == 0 {
			return skipped, nil
		}
	}
	return skipped, nil
}

// Close implements wsola.ByteSource.
func (s *FileSource) Close() error {
	return s.f.Close()
}

// TotalFrames returns the WAV file's total frame count as reported by its
// header, for SourceOpener callers that want to set Player's progress
// denominator.
func (s *FileSource) TotalFrames() int64 {
	dur, err := s.dec.Duration()
	if err != nil {
		return 0
	}
	return int64(dur.Seconds() * s.format.SampleRate)
}

// FileSink is a wsola.AudioSink backed by a WAV file on disk: it decodes
// the raw interleaved bytes the chain hands it back into samples and
// writes them through go-audio/wav's encoder.
type FileSink struct {
	f      *os.File
	enc    *wav.Encoder
	format wsola.AudioFormat
	intBuf *audio.IntBuffer
}

// Create creates (or truncates) name as a WAV file sink matching format.
func Create(name string, format wsola.AudioFormat) (*FileSink, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("wavio: create %q: %w", name, err)
	}
	enc := wav.NewEncoder(f, int(format.SampleRate), format.Enc.BitDepth, format.Channels, 1)
	return &FileSink{
		f:      f,
		enc:    enc,
		format: format,
		intBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: format.Channels, SampleRate: int(format.SampleRate)},
			SourceBitDepth: format.Enc.BitDepth,
		},
	}, nil
}

// Write implements wsola.AudioSink: p must hold a whole number of frames
// in the sink's declared encoding.
func (s *FileSink) Write(p []byte) (int, error) {
	bps := s.format.Enc.BytesPerSample()
	n := len(p) / bps
	if n == 0 {
		return 0, nil
	}
	floats := make([]float64, n)
	if err := wsola.DecodeBytes(p[:n*bps], s.format.Enc, floats); err != nil {
		return 0, fmt.Errorf("wavio: decoding for write: %w", err)
	}
	scale := float64(int64(1) << (uint(s.format.Enc.BitDepth) - 1))
	ints := make([]int, n)
	for i, v := range floats {
		ints[i] = int(v * scale)
	}
	s.intBuf.Data = ints
	if err := s.enc.Write(s.intBuf); err != nil {
		return 0, fmt.Errorf("wavio: encoder write: %w", err)
	}
	return n * bps, nil
}

// Drain implements wsola.AudioSink. The underlying encoder has no separate
// flush step short of Close, so Drain is a no-op.
func (s *FileSink) Drain() error {
	return nil
}

// Close implements wsola.AudioSink: finalizes the WAV header and closes
// the underlying file.
func (s *FileSink) Close() error {
	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return fmt.Errorf("wavio: closing encoder: %w", err)
	}
	return s.f.Close()
}

// Opener implements wsola.SourceOpener by opening name as a WAV file.
type Opener struct{}

// Open implements wsola.SourceOpener.
func (Opener) Open(name string) (wsola.ByteSource, int64, error) {
	src, err := Open(name)
	if err != nil {
		return nil, 0, err
	}
	return src, src.TotalFrames(), nil
}
