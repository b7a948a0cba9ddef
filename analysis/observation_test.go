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
	"bytes"
	"go/format"
	"io/ioutil"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
)

// gridFile writes a 2x3 grid with one variable and, if config is not
// nil, a pism_config variable.
func gridFile(t *testing.T, path, name string, values []float32, config attrs) {
	vars := []ncVar{
		{name: "x", dims: []string{"x"}, data: []float64{0, 1000, 2000}},
		{name: "y", dims: []string{"y"}, data: []float64{0, 1000}},
		{name: name, dims: []string{"y", "x"}, data: values,
			attrs: attrs{{"units", "m year-1"}, {"_FillValue", []float32{-2e9}}}},
	}
	if config != nil {
		vars = append(vars, ncVar{name: "pism_config", attrs: config})
	}
	ncFile{dims: []string{"y", "x"}, lengths: []int{2, 3}, vars: vars}.write(t, path)
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

var testConfig = attrs{
	{"sia_enhancement_factor", []float64{3}},
	{"pseudo_plastic_q", []float64{0.25}},
	{"till_effective_fraction_overburden", []float64{0.02}},
}

func TestObservationExperiment(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	obsPath := filepath.Join(dir, "obs.nc")
	expPath := filepath.Join(dir, "exp.nc")
	gridFile(t, obsPath, "velsurf_mag", []float32{10, 20, 30, 40, 50, -2e9}, nil)
	gridFile(t, expPath, "velsurf_mag", []float32{12, 18, 30, 600, 50, 60}, testConfig)

	edges := Bins(0, 100, 2)
	obs, err := NewObservation(obsPath, "velsurf_mag", edges)
	if err != nil {
		t.Fatal(err)
	}
	if obs.Title != "obs.nc" || obs.Units != "m year-1" {
		t.Errorf("title %q, units %q", obs.Title, obs.Units)
	}
	if want := []float64{4, 1}; !reflect.DeepEqual(obs.N, want) {
		t.Errorf("observation histogram: have %v, want %v", obs.N, want)
	}
	if want := []bool{false, false, false, false, false, true}; !reflect.DeepEqual(obs.Mask, want) {
		t.Errorf("observation mask: have %v, want %v", obs.Mask, want)
	}

	e, err := NewExperiment(obs, 500, FastFlowParams, FastFlowAbbr, expPath, "velsurf_mag", edges)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{3, 1}; !reflect.DeepEqual(e.N, want) {
		t.Errorf("experiment histogram: have %v, want %v", e.N, want)
	}
	if want := []bool{true, true, true, false, true, false}; !reflect.DeepEqual(e.Valid, want) {
		t.Errorf("valid cells: have %v, want %v", e.Valid, want)
	}
	if math.Abs(e.RMSE-math.Sqrt2) > 1e-12 {
		t.Errorf("rmse: have %g, want %g", e.RMSE, math.Sqrt2)
	}
	if e.Avg != 0 {
		t.Errorf("avg: have %g, want 0", e.Avg)
	}
	if have, want := e.NormalizedRMSE(), math.Sqrt2/40*100; math.Abs(have-want) > 1e-12 {
		t.Errorf("normalized rmse: have %g, want %g", have, want)
	}
	wantParams := map[string]string{
		"sia_enhancement_factor":             "3.0",
		"pseudo_plastic_q":                   "0.25",
		"till_effective_fraction_overburden": "0.02",
	}
	if !reflect.DeepEqual(e.Parameters, wantParams) {
		t.Errorf("parameters: have %v, want %v", e.Parameters, wantParams)
	}
	if have, want := e.Label([]string{"e", "q"}), "e = 3.0, q = 0.25"; have != want {
		t.Errorf("label: have %q, want %q", have, want)
	}
	if have := e.Label(nil); have != "exp.nc" {
		t.Errorf("label without keys: have %q", have)
	}

	if err := obs.AddMask([]bool{false, false, false, false, true, false}); err != nil {
		t.Fatal(err)
	}
	if want := []float64{4, 0}; !reflect.DeepEqual(obs.N, want) {
		t.Errorf("masked observation histogram: have %v, want %v", obs.N, want)
	}
	if err := obs.AddMask([]bool{true}); err == nil {
		t.Error("expected an error for a mask of the wrong size")
	}
}

func TestExperimentErrors(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	obsPath := filepath.Join(dir, "obs.nc")
	gridFile(t, obsPath, "velsurf_mag", []float32{1, 2, 3, 4, 5, 6}, nil)
	small := filepath.Join(dir, "small.nc")
	ncFile{
		dims:    []string{"x"},
		lengths: []int{2},
		vars:    []ncVar{{name: "velsurf_mag", dims: []string{"x"}, data: []float32{1, 2}}},
	}.write(t, small)
	obs, err := NewObservation(obsPath, "velsurf_mag", Bins(0, 10, 2))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewExperiment(obs, 500, nil, nil, small, "velsurf_mag", obs.Edges); err == nil {
		t.Error("expected a shape mismatch error")
	}
	// No pism_config in the observation file.
	if _, err := NewExperiment(obs, 500, FastFlowParams, FastFlowAbbr, obsPath, "velsurf_mag", obs.Edges); err == nil {
		t.Error("expected an error for a missing pism_config")
	}
}

func TestSortByRMSE(t *testing.T) {
	exps := []*Experiment{
		{Field: &Field{Title: "b"}, RMSE: 3},
		{Field: &Field{Title: "a"}, RMSE: 1},
		{Field: &Field{Title: "c"}, RMSE: 2},
	}
	var titles []string
	for _, e := range SortByRMSE(exps) {
		titles = append(titles, e.Title)
	}
	if want := []string{"a", "c", "b"}; !reflect.DeepEqual(titles, want) {
		t.Errorf("have %v, want %v", titles, want)
	}
	if exps[0].Title != "b" {
		t.Error("SortByRMSE modified its input")
	}
	PrintOverallStatistics(exps, quietLog())
}

func TestGofmt(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		src, err := ioutil.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		out, err := format.Source(src)
		if err != nil {
			t.Errorf("%s: %v", f, err)
			continue
		}
		if !bytes.Equal(src, out) {
			t.Errorf("%s is not gofmt-formatted", f)
		}
	}
}
