package wsola

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

const (
	resamplerNmult = 9  // odd, per the window-length-multiplier invariant
	resamplerNpc   = 32 // filter phase steps per input sample
)

// Resampler implements variable-ratio sample-rate conversion via
// Kaiser-windowed sinc interpolation: filter_up (output rate at least the
// input rate) reconstructs at the ideal full-Nyquist cutoff, filter_ud
// (otherwise) reconstructs through a cutoff scaled down by the ratio to
// keep the result alias-free. Rate changes land through the same
// single-slot atomic hand-off WSOLA uses for its own parameters.
type Resampler struct {
	channels int

	factorBits atomic.Uint64 // math.Float64bits of the active ratio

	upFilter *FilterKit // fixed: always the full-band filter

	downMu     sync.Mutex
	downFilter *FilterKit
	downFactor float64

	outBuf []float64
}

// NewResampler returns a Resampler with ratio 1.0 (identity).
func NewResampler(channels int) *Resampler {
	r := &Resampler{
		channels: channels,
		upFilter: newFilterKit(resamplerNmult, resamplerNpc, 0.5),
	}
	r.factorBits.Store(math.Float64bits(1.0))
	return r
}

// Factor returns the currently active ratio.
func (r *Resampler) Factor() float64 {
	return math.Float64frombits(r.factorBits.Load())
}

// SetRate publishes a new ratio, picked up by the next Process call. A
// ratio of 1.0 makes Process a pass-through.
func (r *Resampler) SetRate(factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("wsola: resampler factor must be > 0, got %v", factor)
	}
	r.factorBits.Store(math.Float64bits(factor))
	return nil
}

// downFilterFor returns the anti-aliasing filter for the given
// sub-unity factor, rebuilding it only when the factor actually changed.
func (r *Resampler) downFilterFor(factor float64) *FilterKit {
	r.downMu.Lock()
	defer r.downMu.Unlock()
	if r.downFilter == nil || math.Abs(r.downFactor-factor) > 1e-9 {
		r.downFilter = newFilterKit(resamplerNmult, resamplerNpc, 0.5*factor)
		r.downFactor = factor
	}
	return r.downFilter
}

// Process implements AudioProcessor. At factor 1.0 it leaves event.Float
// untouched (sample-identical pass-through); otherwise it resamples the
// whole buffer to round(in_len*factor) frames, replacing event.Float and
// scaling event.Overlap and event.RatioOutToIn by the same factor.
func (r *Resampler) Process(event *AudioEvent) bool {
	factor := r.Factor()
	if factor == 1.0 {
		return true
	}

	channels := r.channels
	in := event.Float
	inFrames := len(in) / channels
	outFrames := int(math.Round(float64(inFrames) * factor))
	outLen := outFrames * channels

	if cap(r.outBuf) < outLen {
		r.outBuf = make([]float64, outLen)
	} else {
		r.outBuf = r.outBuf[:outLen]
	}

	var fk *FilterKit
	if factor >= 1.0 {
		fk = r.upFilter
	} else {
		fk = r.downFilterFor(factor)
	}

	for j := 0; j < outFrames; j++ {
		center := float64(j) / factor
		convolveAt(fk, in, inFrames, channels, center, r.outBuf, j*channels)
	}

	event.Float = r.outBuf
	event.Overlap = SampleIndex(int(math.Round(float64(event.Overlap) * factor)))
	event.RatioOutToIn *= factor
	return true
}

// Finished implements AudioProcessor. Resampler holds no external resources.
func (r *Resampler) Finished() {}
