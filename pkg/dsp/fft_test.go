package dsp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineFrame(n, bin int, amp float64) []float32 {
	frame := make([]float32, n)
	for i := range frame {
		frame[i] = float32(amp * math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(n)))
	}
	return frame
}

func TestFFTRealShapeAndScale(t *testing.T) {
	frame := sineFrame(256, 10, 1.0)

	out := FFTReal(frame, 1.0)
	require.Len(t, out, 2*len(frame))

	scaled := FFTReal(frame, 0.5)
	for i := range out {
		assert.InDelta(t, out[i]*0.5, scaled[i], 1e-4)
	}
}

func TestFFTLinearity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, n := range []int{64, 256, 1024} {
		x := make([]float32, n)
		y := make([]float32, n)
		for i := 0; i < n; i++ {
			x[i] = rng.Float32()*2 - 1
			y[i] = rng.Float32()*2 - 1
		}

		const a, b = 0.7, -1.3
		sum := make([]float32, n)
		for i := 0; i < n; i++ {
			sum[i] = a*x[i] + b*y[i]
		}

		fx := FFTReal(x, 1.0)
		fy := FFTReal(y, 1.0)
		fs := FFTReal(sum, 1.0)

		for i := range fs {
			assert.InDelta(t, float64(a*fx[i]+b*fy[i]), float64(fs[i]), 1e-4, "n=%d i=%d", n, i)
		}
	}
}

func TestMagnitudeSpectrumSingleTone(t *testing.T) {
	const n = 1024
	const bin = 40

	mags := MagnitudeSpectrum(sineFrame(n, bin, 1.0))
	require.Len(t, mags, n/2)

	assert.InDelta(t, 1.0, mags[bin], 1e-3, "tone bin should read full scale")
	for i := range mags {
		if i == bin {
			continue
		}
		assert.Less(t, mags[i], float32(0.01), "bin %d should be quiet", i)
	}
}

func TestDisplaySpectrumSilenceIsFlat(t *testing.T) {
	spec := DisplaySpectrum(make([]float32, 512))
	require.Len(t, spec, 256)
	for _, v := range spec {
		assert.Less(t, v, float32(-100.0))
	}
}
