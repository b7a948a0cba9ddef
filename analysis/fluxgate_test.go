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
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func writeProfiles(t *testing.T, dir string) (exp, obs string) {
	exp = filepath.Join(dir, "profiles_g1200m.nc")
	obs = filepath.Join(dir, "profiles_obs.nc")
	dims := []string{"profile", "nchars", "points"}
	lengths := []int{2, 8, 3}
	common := []ncVar{
		{name: "profile_name", dims: []string{"profile", "nchars"}, data: "Jakobs\u00e6Helheim\x00"},
		{name: "profile", dims: []string{"profile", "points"}, data: []float64{0, 1, 2, 0, 5, 10},
			attrs: attrs{{"units", "km"}, {"long_name", "distance along profile"}}},
	}
	ncFile{dims: dims, lengths: lengths, vars: append(common,
		ncVar{name: "velsurf_mag", dims: []string{"profile", "points"}, data: []float32{1, 2, 3, 4, 5, 6},
			attrs: attrs{{"units", "m year-1"}}},
		ncVar{name: "pism_config", attrs: testConfig},
	)}.write(t, exp)
	ncFile{dims: dims, lengths: lengths, vars: append(common,
		ncVar{name: "velsurf_mag", dims: []string{"profile", "points"}, data: []float32{2, 2, 2, 5, 5, 5},
			attrs: attrs{{"units", "m year-1"}}},
		ncVar{name: "uvelsurf_error", dims: []string{"profile", "points"}, data: []float32{1, 1, 1, 2, 2, 2}},
	)}.write(t, obs)
	return exp, obs
}

func TestReadFluxGates(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	exp, obs := writeProfiles(t, dir)
	gates, err := ReadFluxGates(exp)
	if err != nil {
		t.Fatal(err)
	}
	if len(gates) != 2 {
		t.Fatalf("have %d gates, want 2", len(gates))
	}
	if gates[0].Name != "Jakobs\u00e6" || gates[1].Name != "Helheim" {
		t.Errorf("names: %q, %q", gates[0].Name, gates[1].Name)
	}
	if !reflect.DeepEqual(gates[1].Axis, []float64{0, 5, 10}) || gates[1].AxisUnits != "km" ||
		gates[1].AxisName != "distance along profile" {
		t.Errorf("axis: %+v", gates[1])
	}

	od, err := ReadProfileData(obs, "velsurf_mag", false)
	if err != nil {
		t.Fatal(err)
	}
	ed, err := ReadProfileData(exp, "velsurf_mag", true)
	if err != nil {
		t.Fatal(err)
	}
	g := gates[1]
	log := quietLog()
	if err := g.AddObservations(od, 2, log); err != nil {
		t.Fatal(err)
	}
	if err := g.AddExperiment(ed, 2, log); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g.Observations.Values, []float64{5, 5, 5}) ||
		!reflect.DeepEqual(g.Observations.Error, []float64{2, 2, 2}) {
		t.Errorf("observations: %+v", g.Observations)
	}
	if !reflect.DeepEqual(g.Experiments[0].Values, []float64{4, 5, 6}) {
		t.Errorf("experiment: %+v", g.Experiments[0])
	}
	if g.Variable != "velsurf_mag" || g.VariableUnits != "m year-1" {
		t.Errorf("variable %q units %q", g.Variable, g.VariableUnits)
	}
	if _, err := ReadProfileData(obs, "velsurf_mag", true); err == nil {
		t.Error("expected an error for observations without pism_config")
	}
}

func TestExperimentLabel(t *testing.T) {
	config := map[string]string{
		"pseudo_plastic_q":                   "0.25",
		"till_effective_fraction_overburden": "0.02",
		"sia_enhancement_factor":             "3.0",
	}
	have := ExperimentLabel(config, FluxGateParams, FastFlowAbbr)
	if want := `q=0.25, $\alpha$=0.02, e=3.0`; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
}

func TestGateFileBase(t *testing.T) {
	for name, want := range map[string]string{
		"Jakobshavn Isbr\u00e6":     "Jakobshavn_Isbrae",
		"Ryder Gletscher (S\u00f8)": "Ryder_Gletscher_(So)",
		"\u00dcmanaq":               "Umanaq",
		"Kangerlussuaq":             "Kangerlussuaq",
	} {
		if have := GateFileBase(name); have != want {
			t.Errorf("%q: have %q, want %q", name, have, want)
		}
	}
}

func TestFluxGateAnalysis(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	exp, obs := writeProfiles(t, dir)
	files, err := FluxGateAnalysis(FluxGateOptions{
		Files:   []string{exp},
		ObsFile: obs,
		Formats: []string{"png"},
		OutDir:  dir,
		Log:     quietLog(),
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	want := []string{filepath.Join(dir, "Helheim.png"), filepath.Join(dir, "Jakobsae.png")}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("have %v, want %v", files, want)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			t.Error(err)
		}
	}
	if _, err := FluxGateAnalysis(FluxGateOptions{}); err == nil {
		t.Error("expected an error without files")
	}
}
