package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FFTReal computes the complex spectrum of a real-valued frame using go-dsp.
// The result is interleaved real/imaginary pairs of length 2*len(src), each
// value scaled by d.
func FFTReal(src []float32, d float32) []float32 {
	in := make([]float64, len(src))
	for i, v := range src {
		in[i] = float64(v)
	}

	out := fft.FFTReal(in)

	dst := make([]float32, 2*len(src))
	for i, c := range out {
		dst[2*i] = float32(real(c)) * d
		dst[2*i+1] = float32(imag(c)) * d
	}
	return dst
}

// MagnitudeSpectrum returns the magnitudes of the first N/2 FFT bins of a
// frame, normalized so a full-scale sine centered on a bin reads close to 1.0.
func MagnitudeSpectrum(frame []float32) []float32 {
	in := make([]float64, len(frame))
	for i, v := range frame {
		in[i] = float64(v)
	}

	out := fft.FFTReal(in)

	scale := 2.0 / float64(len(frame))
	mags := make([]float32, len(frame)/2)
	for i := range mags {
		mags[i] = float32(cmplx.Abs(out[i]) * scale)
	}
	return mags
}

// DisplaySpectrum computes a Hann-windowed power spectrum in dB for waterfall
// display. The demodulation path uses MagnitudeSpectrum instead: data tones
// sit on exact bin centers, so it needs no window.
func DisplaySpectrum(frame []float32) []float32 {
	in := make([]float64, len(frame))
	for i, v := range frame {
		in[i] = float64(v)
	}
	window.Apply(in, window.Hann)

	out := fft.FFTReal(in)

	spec := make([]float32, len(frame)/2)
	for i := range spec {
		p := cmplx.Abs(out[i]) / float64(len(frame))
		spec[i] = float32(20 * math.Log10(p+1e-12))
	}
	return spec
}
