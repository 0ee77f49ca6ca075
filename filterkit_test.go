package wsola

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBesselI0_KnownValues(t *testing.T) {
	assert.InDelta(t, 1.0, besselI0(0), 1e-9)
	// I0(2) ~= 2.2795853...
	assert.InDelta(t, 2.2795853, besselI0(2), 1e-6)
}

func TestLowpassFilter_CenterTapIsTwiceCutoff(t *testing.T) {
	c := make([]float64, 65)
	lowpassFilter(c, 64, 0.25, kaiserBeta, 32)
	assert.InDelta(t, 0.5, c[0], 1e-12)
}

func TestNewFilterKit_TableShapeAndDecay(t *testing.T) {
	fk := newFilterKit(resamplerNmult, resamplerNpc, 0.5)
	require.Equal(t, resamplerNmult*resamplerNpc, fk.Nwing)
	require.Len(t, fk.Imp, fk.Nwing+1)
	require.Len(t, fk.ImpD, fk.Nwing)
	assert.Equal(t, 0.0, fk.Imp[fk.Nwing])

	for i := 0; i < fk.Nwing; i++ {
		assert.InDelta(t, fk.Imp[i+1]-fk.Imp[i], fk.ImpD[i], 1e-12)
	}
}

func TestWeightAt_ZeroBeyondSpan(t *testing.T) {
	fk := newFilterKit(4, 8, 0.5)
	assert.Equal(t, 0.0, fk.weightAt(fk.span()+0.01))
	assert.Greater(t, fk.weightAt(0), 0.0)
}

func TestConvolveAt_ConstantSignalPreservesValue(t *testing.T) {
	fk := newFilterKit(resamplerNmult, resamplerNpc, 0.5)
	in := make([]float64, 400)
	for i := range in {
		in[i] = 3.0
	}
	out := make([]float64, 1)
	convolveAt(fk, in, len(in), 1, 200, out, 0)
	assert.InDelta(t, 3.0, out[0], 0.05)
}

func TestConvolveAt_LinearSignalExactAtInteriorCenter(t *testing.T) {
	fk := newFilterKit(resamplerNmult, resamplerNpc, 0.5)
	in := make([]float64, 400)
	for i := range in {
		in[i] = float64(i)
	}
	out := make([]float64, 1)
	// A symmetric filter applied to a locally-linear ramp, well away from
	// either edge, reproduces the center value almost exactly.
	convolveAt(fk, in, len(in), 1, 200, out, 0)
	assert.InDelta(t, 200.0, out[0], 1e-6)
}
