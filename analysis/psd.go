/*
Copyright © 2018 the pismrun authors.
This file is part of pismrun.

pismrun is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

pismrun is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with pismrun.  If not, see <http://www.gnu.org/licenses/>.
*/

package analysis

import (
	"math"
	"math/cmplx"
)

// Spectrum is a one-sided power spectral density estimate.
type Spectrum struct {
	Freq  []float64
	Power []float64
}

// DB returns the power in decibels.
func (s *Spectrum) DB() []float64 {
	o := make([]float64, len(s.Power))
	for i, p := range s.Power {
		o[i] = 10 * math.Log10(p)
	}
	return o
}

// hanning returns a symmetric Hann window of length n.
func hanning(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// dft returns the discrete Fourier transform of x for frequencies
// 0 through len(x)/2.
func dft(x []float64) []complex128 {
	n := len(x)
	o := make([]complex128, n/2+1)
	for k := range o {
		var s complex128
		for t, v := range x {
			s += complex(v, 0) * cmplx.Exp(complex(0, -2*math.Pi*float64(k*t)/float64(n)))
		}
		o[k] = s
	}
	return o
}

// PSD estimates the power spectral density of x with Welch's method:
// x is cut into non-overlapping segments of nfft samples, each segment
// is multiplied by a Hann window, and the periodograms are averaged.
// fs is the sampling frequency. Signals shorter than nfft are padded
// with zeros and NaN values count as zero.
func PSD(x []float64, nfft int, fs float64) *Spectrum {
	if nfft < 2 {
		nfft = 2
	}
	data := make([]float64, len(x))
	for i, v := range x {
		if !math.IsNaN(v) {
			data[i] = v
		}
	}
	if len(data) < nfft {
		data = append(data, make([]float64, nfft-len(data))...)
	}
	w := hanning(nfft)
	var wsum float64
	for _, v := range w {
		wsum += v * v
	}
	nseg := len(data) / nfft
	power := make([]float64, nfft/2+1)
	seg := make([]float64, nfft)
	for s := 0; s < nseg; s++ {
		for i := range seg {
			seg[i] = data[s*nfft+i] * w[i]
		}
		for k, c := range dft(seg) {
			p := real(c)*real(c) + imag(c)*imag(c)
			// Fold the negative frequencies, except DC and Nyquist.
			if k > 0 && !(nfft%2 == 0 && k == nfft/2) {
				p *= 2
			}
			power[k] += p / fs / wsum
		}
	}
	freq := make([]float64, len(power))
	for k := range power {
		power[k] /= float64(nseg)
		freq[k] = float64(k) * fs / float64(nfft)
	}
	return &Spectrum{Freq: freq, Power: power}
}
