package wsola

import (
	"fmt"
	"math"
	"sync/atomic"
)

// WSOLAParams are the user-facing knobs for the WSOLA time stretcher: the
// playback tempo multiplier and the three window sizes, all in
// milliseconds, that the streaming search derives its sample counts from.
type WSOLAParams struct {
	Tempo        float64
	SequenceMs   float64
	SeekWindowMs float64
	OverlapMs    float64
}

// Validate rejects parameter sets that would silently corrupt the derived
// sizes invariant 5 (output-buffer and mid-buffer lengths) requires to hold
// for every legal input.
func (p WSOLAParams) Validate() error {
	if p.Tempo <= 0 {
		return fmt.Errorf("wsola: tempo must be > 0, got %v", p.Tempo)
	}
	if p.SequenceMs <= 0 {
		return fmt.Errorf("wsola: sequence_ms must be > 0, got %v", p.SequenceMs)
	}
	if p.SeekWindowMs <= 0 {
		return fmt.Errorf("wsola: seek_window_ms must be > 0, got %v", p.SeekWindowMs)
	}
	if p.OverlapMs <= 0 {
		return fmt.Errorf("wsola: overlap_ms must be > 0, got %v", p.OverlapMs)
	}
	return nil
}

// WSOLA implements streaming Waveform-Similarity-Based Overlap-Add
// time-scale modification: it searches, once per event, for the
// cross-correlation-maximizing alignment between the tail of the previous
// output sequence and the current input, cross-fades across that alignment,
// and emits a re-timed sequence whose geometry can change between events in
// response to a tempo update.
type WSOLA struct {
	sr       int
	channels int
	math     SampleMath

	tempo      float64
	overlapLen SampleIndex
	seekWindow SampleIndex
	seek       SampleIndex
	intSkip    SampleIndex
	sampleReq  SampleIndex

	mid    []float64
	refMid []float64
	outBuf []float64

	pendingParams atomic.Pointer[WSOLAParams]

	// dispatcher is the optional back-channel installed by SetDispatcher.
	// WSOLA never treats it as owned and tolerates its absence.
	dispatcher *AudioDispatcher
}

// NewWSOLA validates params and returns a WSOLA ready to process its first
// event. Mid and reference-mid buffers start zero-filled, which yields a
// silent ramp-in during the very first cross-fade.
func NewWSOLA(sampleRate, channels int, params WSOLAParams) (*WSOLA, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	w := &WSOLA{
		sr:       sampleRate,
		channels: channels,
		math:     NewSampleMath(channels),
	}
	w.applyDerivedSizes(params)
	return w, nil
}

// SetDispatcher installs the dispatcher back-channel WSOLA uses to keep the
// dispatcher's read geometry synchronized with a tempo-driven size change.
// Optional: WSOLA works without one, simply skipping the notification.
func (w *WSOLA) SetDispatcher(d *AudioDispatcher) {
	w.dispatcher = d
}

// SetParameters validates and publishes a new parameter set through the
// single-slot atomic hand-off. It is picked up at the end of the next
// Process call — never mid-event — so no event ever mixes old and new
// parameter-derived sizes.
func (w *WSOLA) SetParameters(params WSOLAParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	cp := params
	w.pendingParams.Store(&cp)
	return nil
}

// SampleRequirement returns the input frame count and dispatcher overlap
// this WSOLA currently expects to be fed per event: sample_req frames with
// sample_req - int_skip frames of that being the retained overlap.
func (w *WSOLA) SampleRequirement() (sampleReq, overlap SampleIndex) {
	return w.sampleReq, w.sampleReq - w.intSkip
}

// Process implements AudioProcessor. It assumes event.Float holds exactly
// SampleRequirement() frames, which is true whenever the dispatcher feeding
// this WSOLA was configured (and kept synchronized via SetDispatcher) with
// that geometry.
func (w *WSOLA) Process(event *AudioEvent) bool {
	in := event.Float
	channels := w.channels
	overlapLen := int(w.overlapLen)
	seekWindow := int(w.seekWindow)
	seek := int(w.seek)

	if wantLen := int(w.math.ToArrayIndex(w.sampleReq)); len(in) != wantLen {
		panic(fmt.Sprintf("wsola: input length %d != sample_req*channels %d", len(in), wantLen))
	}

	w.refreshRefMid()

	beta := w.searchBestOffset(in, seek)

	out := w.outBuf
	if overlapLen > 0 {
		denom := float64(overlapLen)
		for i := 0; i < overlapLen; i++ {
			wgt := float64(i)
			inv := float64(overlapLen - i)
			dst := i * channels
			src := (beta + i) * channels
			for c := 0; c < channels; c++ {
				out[dst+c] = (in[src+c]*wgt + w.mid[dst+c]*inv) / denom
			}
		}
	}

	bodyLen := seekWindow - 2*overlapLen
	if bodyLen > 0 {
		srcStart := (beta + overlapLen) * channels
		dstStart := overlapLen * channels
		copy(out[dstStart:dstStart+bodyLen*channels], in[srcStart:srcStart+bodyLen*channels])
	}

	if overlapLen > 0 {
		midStart := (beta + seekWindow - overlapLen) * channels
		copy(w.mid, in[midStart:midStart+overlapLen*channels])
	}

	event.Float = out
	event.Overlap = 0
	event.RatioOutToIn *= 1.0 / w.tempo

	if changed := w.applyPendingParams(); changed && w.dispatcher != nil {
		sampleReq, overlap := w.SampleRequirement()
		_ = w.dispatcher.SetStepAndOverlap(sampleReq, overlap)
	}

	return true
}

// Finished implements AudioProcessor. WSOLA holds no external resources.
func (w *WSOLA) Finished() {}

// searchBestOffset returns the beta in [0, seek) maximizing score(beta), the
// first (smallest) maximizer winning ties.
func (w *WSOLA) searchBestOffset(in []float64, seek int) int {
	if seek <= 0 {
		return 0
	}
	best := 0
	bestScore := math.Inf(-1)
	for beta := 0; beta < seek; beta++ {
		s := w.scoreAt(beta, in, seek)
		if s > bestScore {
			bestScore = s
			best = beta
		}
	}
	return best
}

// scoreAt computes score(beta) = (corr(beta) + 0.1) * (1 - 0.25*t(beta)^2),
// t(beta) = (2*beta - seek) / seek — a centering penalty applied on top of
// the raw normalized cross-correlation.
func (w *WSOLA) scoreAt(beta int, in []float64, seek int) float64 {
	corr := w.correlation(beta, in)
	t := (2*float64(beta) - float64(seek)) / float64(seek)
	return (corr + 0.1) * (1 - 0.25*t*t)
}

// correlation computes the normalized cross-correlation between the
// pre-sloped mono reference (derived from mid) and the mono projection of
// the input at offset beta, over the overlap window.
func (w *WSOLA) correlation(beta int, in []float64) float64 {
	overlapLen := int(w.overlapLen)
	channels := w.channels
	var corr, norm float64
	for i := 0; i < overlapLen; i++ {
		refM := monoAt(w.refMid, i, channels)
		inM := monoAt(in, i+beta, channels)
		corr += refM * inM
		norm += refM * refM
	}
	if norm < 1e-8 {
		norm = 1.0
	}
	return corr / math.Sqrt(norm)
}

// refreshRefMid recomputes the pre-sloped correlation reference from
// whatever mid currently holds. Recomputed fresh at the top of every
// Process call rather than carried as independently-updated state, since
// mid itself changes at the end of every event.
func (w *WSOLA) refreshRefMid() {
	overlapLen := int(w.overlapLen)
	channels := w.channels
	for i := 0; i < overlapLen; i++ {
		slope := float64(i) * float64(overlapLen-i)
		base := i * channels
		for c := 0; c < channels; c++ {
			w.refMid[base+c] = w.mid[base+c] * slope
		}
	}
}

// monoAt returns the channel-averaged value of frame i in an interleaved buffer.
func monoAt(buf []float64, i, channels int) float64 {
	base := i * channels
	var sum float64
	for c := 0; c < channels; c++ {
		sum += buf[base+c]
	}
	return sum / float64(channels)
}

// applyPendingParams swaps out any pending parameter set and, if one was
// present, recomputes every derived size and reallocates buffers
// accordingly, reporting whether a change was applied.
func (w *WSOLA) applyPendingParams() bool {
	p := w.pendingParams.Swap(nil)
	if p == nil {
		return false
	}
	w.applyDerivedSizes(*p)
	return true
}

// applyDerivedSizes recomputes tempo/overlapLen/seekWindow/seek/intSkip/
// sampleReq from params and reallocates mid/refMid/outBuf. Per the
// mid-buffer reallocation invariant: reallocate when overlapLen grew or mid
// is unallocated, preserving old content where it fits; the output buffer
// is always resized to the new output length.
func (w *WSOLA) applyDerivedSizes(p WSOLAParams) {
	overlapLen := w.math.MsToSamples(p.OverlapMs, w.sr)
	seekWindow := w.math.MsToSamples(p.SequenceMs, w.sr)
	seek := w.math.MsToSamples(p.SeekWindowMs, w.sr)
	intSkip := SampleIndex(int(p.Tempo*float64(seekWindow-overlapLen) + 0.5))
	sampleReq := maxSampleIndex(intSkip+overlapLen, seekWindow) + seek

	growMid := w.mid == nil || overlapLen > w.overlapLen

	w.tempo = p.Tempo
	w.overlapLen = overlapLen
	w.seekWindow = seekWindow
	w.seek = seek
	w.intSkip = intSkip
	w.sampleReq = sampleReq

	midLen := int(w.math.ToArrayIndex(overlapLen))
	if growMid {
		w.mid = reallocPreservingPrefix(w.mid, midLen)
		w.refMid = make([]float64, midLen)
	} else if len(w.refMid) != midLen {
		w.refMid = make([]float64, midLen)
	}

	outLen := int(w.math.ToArrayIndex(seekWindow - overlapLen))
	if cap(w.outBuf) < outLen {
		w.outBuf = make([]float64, outLen)
	} else {
		w.outBuf = w.outBuf[:outLen]
	}
}

// reallocPreservingPrefix returns a newLen-length slice containing as much
// of old's prefix as fits, zero-filling the rest.
func reallocPreservingPrefix(old []float64, newLen int) []float64 {
	nw := make([]float64, newLen)
	n := len(old)
	if n > newLen {
		n = newLen
	}
	copy(nw, old[:n])
	return nw
}

func maxSampleIndex(a, b SampleIndex) SampleIndex {
	if a > b {
		return a
	}
	return b
}
