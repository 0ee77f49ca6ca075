package wsola

import "sync/atomic"

// GainProcessor multiplies each non-overlap sample by a volatile linear gain
// and hard-clips the result to [-1, 1]. The overlap prefix of every event
// (other than the first) is left untouched, since those samples were already
// gain-processed as the tail of the previous event.
type GainProcessor struct {
	gain atomic.Value // float64
}

// NewGainProcessor returns a GainProcessor initialized to unity gain.
func NewGainProcessor() *GainProcessor {
	g := &GainProcessor{}
	g.gain.Store(1.0)
	return g
}

// SetGain updates the live gain. Safe to call from any goroutine; takes
// effect starting with the next event processed.
func (g *GainProcessor) SetGain(v float64) {
	g.gain.Store(v)
}

// Gain returns the currently active gain.
func (g *GainProcessor) Gain() float64 {
	return g.gain.Load().(float64)
}

// Process implements AudioProcessor.
func (g *GainProcessor) Process(event *AudioEvent) bool {
	gain := g.Gain()
	start := event.SampleMath().ToArrayIndex(event.Overlap)
	buf := event.Float
	for i := int(start); i < len(buf); i++ {
		v := buf[i] * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		buf[i] = v
	}
	return true
}

// Finished implements AudioProcessor. GainProcessor holds no resources.
func (g *GainProcessor) Finished() {}
