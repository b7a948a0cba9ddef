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

package ncedit

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCalendars(t *testing.T) {
	for _, test := range []struct {
		units, calendar, date string
		want                  float64
	}{
		{"days since 1989-1-1", "standard", "1990-1-1", 365},
		{"days since 1989-1-1", "gregorian", "1993-1-1", 1461},
		{"days since 1989-1-1", "", "1989-3-1", 59},
		{"days since 1989-1-1", "365_day", "1993-1-1", 1460},
		{"days since 1989-1-1", "noleap", "1989-3-1", 59},
		{"days since 1989-1-1", "366_day", "1989-3-1", 60},
		{"days since 1989-1-1", "360_day", "1990-2-1", 390},
		{"seconds since 1989-1-1 00:00:00", "365_day", "1989-1-2", 86400},
		{"hours since 1997-1-1", "noleap", "1997-1-31", 720},
		{"days since 1997-1-1 12:00:00", "noleap", "1997-1-2", 0.5},
	} {
		a, err := newTimeAxis(test.units, test.calendar)
		if err != nil {
			t.Errorf("%s (%s): %v", test.units, test.calendar, err)
			continue
		}
		have, err := a.value(test.date)
		if err != nil {
			t.Errorf("%s: %v", test.date, err)
			continue
		}
		if math.Abs(have-test.want) > 1e-9 {
			t.Errorf("%s (%s) at %s: have %g, want %g", test.units, test.calendar, test.date, have, test.want)
		}
	}
	for _, bad := range [][2]string{
		{"days after 1989-1-1", "standard"},
		{"fortnights since 1989-1-1", "standard"},
		{"days since 1989-1-1", "julian"},
		{"days since 1989-13-1", "standard"},
	} {
		if _, err := newTimeAxis(bad[0], bad[1]); err == nil {
			t.Errorf("%v: expected an error", bad)
		}
	}
	a, _ := newTimeAxis("days since 1989-1-1", "360_day")
	if _, err := a.value("1990-1-31"); err == nil {
		t.Error("expected an error for day 31 in a 360_day calendar")
	}
}

func TestIceEquivalent(t *testing.T) {
	rate, err := IceEquivalent(228e3 * 0.91)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(rate-228) > 1e-9 {
		t.Errorf("have %g m/yr, want 228", rate)
	}
}

func forcingFile(t *testing.T, path string) {
	f := &File{
		Dims:    []string{"time", "y", "x"},
		Lengths: []int{0, 1, 2},
		NumRecs: 3,
		Vars: []*Variable{
			{Name: "time", Dims: []string{"time"}, Data: []float64{0, 29.5, 30},
				Attrs: []Attribute{{Name: "units", Value: "days since 1997-1-1"}, {Name: "calendar", Value: "365_day"}}},
			{Name: "y", Dims: []string{"y"}, Data: []float64{0}},
			{Name: "x", Dims: []string{"x"}, Data: []float64{0, 1000}},
			{Name: "climatic_mass_balance", Dims: []string{"time", "y", "x"}, Data: make([]float32, 6),
				Attrs: []Attribute{{Name: "grid_mapping", Value: "mapping"}}},
			{Name: "mapping", Data: []int32{0}},
		},
		Attrs: []Attribute{{Name: "proj4", Value: EPSG3413}},
	}
	if err := f.WriteFile(path); err != nil {
		t.Fatal(err)
	}
}

func TestOceanForcing(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	in := filepath.Join(dir, "hirham.nc")
	out := filepath.Join(dir, "ocean.nc")
	forcingFile(t, in)
	if err := OceanForcing(OceanOptions{In: in, Out: out, Log: quietLog()}); err != nil {
		t.Fatal(err)
	}
	f, err := ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	ba, be := float32(228e3*0.91), float32(285e3*0.91)
	want := []float32{ba, ba, ba, ba, be, be}
	v := f.Var("shelfbmassflux")
	if v == nil {
		t.Fatal("no shelfbmassflux")
	}
	if !reflect.DeepEqual(v.Data, want) {
		t.Errorf("shelfbmassflux: have %v, want %v", v.Data, want)
	}
	if u, _ := v.Attr("units"); u != "kg m-2 yr-1" {
		t.Errorf("units %v", u)
	}
	if !reflect.DeepEqual(f.Var("shelfbtemp").Data, make([]float32, 6)) {
		t.Errorf("shelfbtemp: %v", f.Var("shelfbtemp").Data)
	}
	if f.NumRecs != 3 || f.Var("mapping") == nil || f.Var("climatic_mass_balance") != nil {
		t.Errorf("records %d, variables %d", f.NumRecs, len(f.Vars))
	}

	if err := OceanForcing(OceanOptions{In: in, ChangeDate: "1997-1-1", MeltBefore: 1, MeltAfter: 2, Log: quietLog()}); err != nil {
		t.Fatal(err)
	}
	f, err = ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}
	if f.Var("climatic_mass_balance") == nil {
		t.Error("in-place edit dropped a variable")
	}
	if have := f.Var("shelfbmassflux").Data; !reflect.DeepEqual(have, []float32{2, 2, 2, 2, 2, 2}) {
		t.Errorf("in place: %v", have)
	}
}
