package wsola

import "math"

// FilterKit is a Kaiser-windowed sinc low-pass filter table, precomputed at
// one phase resolution and reused for every sample the resampler convolves.
// Imp holds the filter's right half (it is even, so the left half mirrors
// it); ImpD holds the forward differences used to linearly interpolate
// between the Npc stored phases per input sample.
type FilterKit struct {
	Nwing int // number of stored phase steps spanning the filter's half-width
	Npc   int // phase steps per input sample
	Imp   []float64
	ImpD  []float64
}

// besselI0 evaluates the zeroth-order modified Bessel function of the first
// kind via its power series, the term-relative-to-running-sum truncation the
// Kaiser window design calls for.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for n := 1.0; ; n++ {
		term *= (halfX / n) * (halfX / n)
		if term < 1e-21*sum {
			return sum
		}
		sum += term
	}
}

// lowpassFilter fills c[0:n] with a Kaiser-windowed sinc low-pass kernel:
// cutoff frq (a fraction of the sampling frequency), Kaiser shape parameter
// beta, num phase steps per sample.
func lowpassFilter(c []float64, n int, frq, beta float64, num int) {
	c[0] = 2 * frq
	denom := besselI0(beta)
	nm1 := float64(n - 1)
	for i := 1; i < n; i++ {
		x := float64(i) / float64(num)
		c[i] = math.Sin(2*math.Pi*float64(i)*frq/float64(num)) / (math.Pi * x)
		ratio := float64(i) / nm1
		c[i] *= besselI0(beta*math.Sqrt(1-ratio*ratio)) / denom
	}
}

// kaiserBeta is the Kaiser window shape parameter used for every filter this
// package designs: high enough stop-band rejection for audio resampling
// without an unreasonably wide transition band.
const kaiserBeta = 8.0

// newFilterKit designs a filter whose half-width is nmult phase-groups of
// npc steps each, with cutoff expressed as a fraction of the sampling
// frequency (0.5 is the full Nyquist band, used for up-sampling; a smaller
// value is the anti-aliasing cutoff used for down-sampling).
func newFilterKit(nmult, npc int, cutoff float64) *FilterKit {
	nwing := nmult * npc
	imp := make([]float64, nwing+1)
	lowpassFilter(imp, nwing, cutoff, kaiserBeta, npc)
	imp[nwing] = 0
	impD := make([]float64, nwing)
	for i := 0; i < nwing; i++ {
		impD[i] = imp[i+1] - imp[i]
	}
	return &FilterKit{Nwing: nwing, Npc: npc, Imp: imp, ImpD: impD}
}

// weightAt returns the filter's value at the given distance (in input
// samples) from its center, linearly interpolating between the Npc stored
// phases per sample and returning 0 once distance leaves the filter's
// support.
func (fk *FilterKit) weightAt(distance float64) float64 {
	phase := distance * float64(fk.Npc)
	if phase >= float64(fk.Nwing) {
		return 0
	}
	i0 := int(phase)
	frac := phase - float64(i0)
	return fk.Imp[i0] + frac*fk.ImpD[i0]
}

// span is the largest distance, in input samples, for which weightAt can
// return a nonzero value.
func (fk *FilterKit) span() float64 {
	return float64(fk.Nwing) / float64(fk.Npc)
}

// convolveAt accumulates, into out[outBase:outBase+channels], the
// channel-wise FilterResult of centering fk on the continuous input position
// center: every touched input frame k contributes weightAt(|center-k|) times
// its sample to every channel's accumulator (filter_up and filter_ud share
// this core; they differ only in which FilterKit they pass in).
func convolveAt(fk *FilterKit, in []float64, inFrames, channels int, center float64, out []float64, outBase int) {
	span := fk.span()
	lo := int(math.Ceil(center - span))
	hi := int(math.Floor(center + span))
	if lo < 0 {
		lo = 0
	}
	if hi > inFrames-1 {
		hi = inFrames - 1
	}
	for c := 0; c < channels; c++ {
		out[outBase+c] = 0
	}
	for k := lo; k <= hi; k++ {
		w := fk.weightAt(math.Abs(center - float64(k)))
		if w == 0 {
			continue
		}
		base := k * channels
		for c := 0; c < channels; c++ {
			out[outBase+c] += w * in[base+c]
		}
	}
}
