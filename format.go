package wsola

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ByteOrder selects how multi-byte PCM samples are laid out on the wire.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// SampleKind distinguishes the three sample representations the format
// converter understands.
type SampleKind int

const (
	PCMSigned SampleKind = iota
	PCMUnsigned
	Float
)

// Encoding describes one interleaved channel sample: its bit depth,
// signedness/float-ness, and byte order. BitDepth must be one of 8, 16, 24,
// 32 for PCM, or 32/64 for Float.
type Encoding struct {
	BitDepth int
	Kind     SampleKind
	Order    ByteOrder
}

// BytesPerSample returns the on-wire width of one channel sample.
func (e Encoding) BytesPerSample() int {
	return e.BitDepth / 8
}

// Validate reports whether e describes a supported encoding.
func (e Encoding) Validate() error {
	switch e.Kind {
	case PCMSigned, PCMUnsigned:
		switch e.BitDepth {
		case 8, 16, 24, 32:
		default:
			return fmt.Errorf("wsola: unsupported PCM bit depth %d", e.BitDepth)
		}
	case Float:
		switch e.BitDepth {
		case 32, 64:
		default:
			return fmt.Errorf("wsola: unsupported float bit depth %d", e.BitDepth)
		}
	default:
		return fmt.Errorf("wsola: unknown sample kind %d", e.Kind)
	}
	return nil
}

// AudioFormat is the immutable description of a PCM stream: sample rate,
// channel count, and per-channel encoding. FrameSize = Channels *
// Enc.BytesPerSample() always holds by construction.
type AudioFormat struct {
	SampleRate float64
	Channels   int
	Enc        Encoding
}

// NewAudioFormat validates its arguments and returns an AudioFormat.
func NewAudioFormat(sampleRate float64, channels int, enc Encoding) (AudioFormat, error) {
	if sampleRate <= 0 {
		return AudioFormat{}, fmt.Errorf("wsola: invalid sample rate %v", sampleRate)
	}
	if channels <= 0 {
		return AudioFormat{}, fmt.Errorf("wsola: invalid channel count %d", channels)
	}
	if err := enc.Validate(); err != nil {
		return AudioFormat{}, err
	}
	return AudioFormat{SampleRate: sampleRate, Channels: channels, Enc: enc}, nil
}

// FrameSize returns the byte width of one interleaved sample (all channels).
func (f AudioFormat) FrameSize() int {
	return f.Channels * f.Enc.BytesPerSample()
}

// fullScale returns the PCM full-scale magnitude used to normalize to
// [-1, 1]: 2^(bits-1) for signed, 2^(bits-1) for unsigned (with a 2^(bits-1)
// zero offset), so that the most negative signed value maps to exactly -1.0.
func fullScale(bitDepth int) float64 {
	return math.Ldexp(1, bitDepth-1)
}

// DecodeBytes decodes len(out) interleaved samples (array-index length, i.e.
// frames*channels) from buf into out, normalizing PCM to [-1, 1] and passing
// IEEE floats through unchanged. buf must hold at least len(out)*BytesPerSample bytes.
func DecodeBytes(buf []byte, enc Encoding, out []float64) error {
	bps := enc.BytesPerSample()
	if len(buf) < len(out)*bps {
		return fmt.Errorf("wsola: DecodeBytes short buffer: need %d bytes, have %d", len(out)*bps, len(buf))
	}
	switch enc.Kind {
	case PCMSigned:
		scale := fullScale(enc.BitDepth)
		for i := range out {
			raw := readInt(buf[i*bps:(i+1)*bps], enc.Order, true)
			out[i] = float64(raw) / scale
		}
	case PCMUnsigned:
		scale := fullScale(enc.BitDepth)
		offset := scale
		for i := range out {
			raw := readInt(buf[i*bps:(i+1)*bps], enc.Order, false)
			out[i] = (float64(raw) - offset) / scale
		}
	case Float:
		bo := byteOrderOf(enc.Order)
		switch enc.BitDepth {
		case 32:
			for i := range out {
				bits := bo.Uint32(buf[i*bps : (i+1)*bps])
				out[i] = float64(math.Float32frombits(bits))
			}
		case 64:
			for i := range out {
				bits := bo.Uint64(buf[i*bps : (i+1)*bps])
				out[i] = math.Float64frombits(bits)
			}
		}
	}
	return nil
}

// EncodeBytes is the inverse of DecodeBytes: it writes len(in) interleaved
// samples from in into buf, which must be at least len(in)*BytesPerSample
// bytes. PCM values are clamped to the representable range before rounding.
func EncodeBytes(in []float64, enc Encoding, buf []byte) error {
	bps := enc.BytesPerSample()
	if len(buf) < len(in)*bps {
		return fmt.Errorf("wsola: EncodeBytes short buffer: need %d bytes, have %d", len(in)*bps, len(buf))
	}
	switch enc.Kind {
	case PCMSigned:
		scale := fullScale(enc.BitDepth)
		maxV := scale - 1
		minV := -scale
		for i, v := range in {
			raw := math.Round(v * scale)
			if raw > maxV {
				raw = maxV
			} else if raw < minV {
				raw = minV
			}
			writeInt(buf[i*bps:(i+1)*bps], int64(raw), enc.Order)
		}
	case PCMUnsigned:
		scale := fullScale(enc.BitDepth)
		offset := scale
		maxV := 2*scale - 1
		for i, v := range in {
			raw := math.Round(v*scale + offset)
			if raw > maxV {
				raw = maxV
			} else if raw < 0 {
				raw = 0
			}
			writeInt(buf[i*bps:(i+1)*bps], int64(raw), enc.Order)
		}
	case Float:
		bo := byteOrderOf(enc.Order)
		switch enc.BitDepth {
		case 32:
			for i, v := range in {
				bo.PutUint32(buf[i*bps:(i+1)*bps], math.Float32bits(float32(v)))
			}
		case 64:
			for i, v := range in {
				bo.PutUint64(buf[i*bps:(i+1)*bps], math.Float64bits(v))
			}
		}
	}
	return nil
}

func byteOrderOf(o ByteOrder) binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// readInt reads a bps-wide integer from b, sign-extending when signed is true.
// 24-bit samples have no native Go integer type, so they are assembled by hand.
func readInt(b []byte, order ByteOrder, signed bool) int64 {
	n := len(b)
	var u uint64
	if order == BigEndian {
		for _, c := range b {
			u = u<<8 | uint64(c)
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			u = u<<8 | uint64(b[i])
		}
	}
	if !signed {
		return int64(u)
	}
	bits := uint(n * 8)
	signBit := uint64(1) << (bits - 1)
	if u&signBit != 0 {
		u |= ^uint64(0) << bits
	}
	return int64(u)
}

// writeInt writes the low n*8 bits of v into b in the given byte order.
func writeInt(b []byte, v int64, order ByteOrder) {
	n := len(b)
	u := uint64(v)
	if order == BigEndian {
		for i := n - 1; i >= 0; i-- {
			b[i] = byte(u)
			u >>= 8
		}
	} else {
		for i := 0; i < n; i++ {
			b[i] = byte(u)
			u >>= 8
		}
	}
}
