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
	"testing"
)

func TestPSDPeak(t *testing.T) {
	const (
		n  = 128
		k0 = 16
	)
	x := make([]float64, 3*n)
	for i := range x {
		x[i] = math.Cos(2 * math.Pi * k0 * float64(i) / n)
	}
	s := PSD(x, n, 2)
	if len(s.Freq) != n/2+1 {
		t.Fatalf("have %d frequencies, want %d", len(s.Freq), n/2+1)
	}
	if s.Freq[n/2] != 1 {
		t.Errorf("nyquist frequency: have %g, want 1", s.Freq[n/2])
	}
	peak := 0
	for k, p := range s.Power {
		if p > s.Power[peak] {
			peak = k
		}
	}
	if peak != k0 {
		t.Errorf("peak at bin %d, want %d", peak, k0)
	}
	if want := float64(k0) * 2 / n; s.Freq[peak] != want {
		t.Errorf("peak frequency: have %g, want %g", s.Freq[peak], want)
	}
}

func TestPSDShortAndNaN(t *testing.T) {
	s := PSD([]float64{1, math.NaN(), 1}, 128, 2)
	if len(s.Power) != 65 {
		t.Fatalf("have %d values, want 65", len(s.Power))
	}
	for k, p := range s.Power {
		if math.IsNaN(p) || p < 0 {
			t.Errorf("bin %d: invalid power %g", k, p)
		}
	}
	z := PSD(make([]float64, 256), 128, 2)
	for _, db := range z.DB() {
		if !math.IsInf(db, -1) {
			t.Errorf("zero signal: have %g dB, want -Inf", db)
			break
		}
	}
}
