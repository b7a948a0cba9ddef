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
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Field is a two-dimensional variable read from a NetCDF file,
// together with a mask of the cells to exclude.
type Field struct {
	// Title is the base name of the file the field was read from.
	Title    string
	Variable string
	Units    string

	Values *sparse.DenseArray

	// Mask is true for cells that are excluded.
	Mask []bool

	// Edges are the histogram bin edges and N the number of unmasked
	// values in each bin.
	Edges []float64
	N     []float64
}

func readField(path, variable string, edges []float64) (*Field, *Dataset, error) {
	d, err := OpenDataset(path)
	if err != nil {
		return nil, nil, err
	}
	v, err := d.FindVariable(variable)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	values, err := d.ReadSqueezed(v)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	f := &Field{
		Title:    d.Title(),
		Variable: v,
		Units:    d.Units(v),
		Values:   values,
		Mask:     make([]bool, len(values.Elements)),
		Edges:    edges,
	}
	for i, x := range values.Elements {
		f.Mask[i] = math.IsNaN(x)
	}
	f.updateHistogram()
	return f, d, nil
}

func (f *Field) updateHistogram() {
	if f.Edges != nil {
		f.N = Histogram(f.Values.Elements, f.Mask, f.Edges)
	}
}

// AddMask excludes the cells where mask is true and recomputes the
// histogram. mask must have the same number of cells as the field.
func (f *Field) AddMask(mask []bool) error {
	if len(mask) != len(f.Mask) {
		return fmt.Errorf("analysis: mask has %d cells but %s has %d", len(mask), f.Title, len(f.Mask))
	}
	for i, m := range mask {
		f.Mask[i] = f.Mask[i] || m
	}
	f.updateHistogram()
	return nil
}

// Where returns a mask that is true where cond is true for the value
// in the cell. NaN values are passed to cond unchanged.
func (f *Field) Where(cond func(v float64) bool) []bool {
	o := make([]bool, len(f.Values.Elements))
	for i, v := range f.Values.Elements {
		o[i] = cond(v)
	}
	return o
}

// Unmasked returns a copy of the values with masked cells set to NaN.
func (f *Field) Unmasked() []float64 {
	o := make([]float64, len(f.Values.Elements))
	for i, v := range f.Values.Elements {
		if f.Mask[i] {
			v = math.NaN()
		}
		o[i] = v
	}
	return o
}

// Observation is a field of observed values.
type Observation struct {
	*Field
}

// NewObservation reads variable from the NetCDF file at path and
// computes its histogram over the given bin edges.
func NewObservation(path, variable string, edges []float64) (*Observation, error) {
	f, d, err := readField(path, variable, edges)
	if err != nil {
		return nil, err
	}
	d.Close()
	return &Observation{Field: f}, nil
}

// Experiment is a field of modeled values compared with an
// observation.
type Experiment struct {
	*Field

	// Parameters holds the pism_config values of the requested
	// parameters, and ShortParameters the same values keyed by their
	// abbreviations.
	Parameters      map[string]string
	ShortParameters map[string]string

	// Valid is true for the cells used in the statistics.
	Valid []bool

	RMSE, Avg float64

	// ContourValues holds the values interpolated along a contour.
	ContourValues []float64

	obs *Observation
}

// NewExperiment reads variable from the NetCDF file at path and masks
// it with the observation mask. params lists the pism_config attributes
// to keep and abbr maps them to short names. Cells where the experiment
// and observation differ by more than outlier are not valid.
func NewExperiment(obs *Observation, outlier float64, params []string, abbr map[string]string,
	path, variable string, edges []float64) (*Experiment, error) {
	f, d, err := readField(path, variable, edges)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	if len(f.Mask) != len(obs.Mask) {
		return nil, fmt.Errorf("analysis: %s has shape %v but observation %s has shape %v",
			f.Title, f.Values.Shape, obs.Title, obs.Values.Shape)
	}
	if err = f.AddMask(obs.Mask); err != nil {
		return nil, err
	}
	e := &Experiment{
		Field:           f,
		Parameters:      make(map[string]string),
		ShortParameters: make(map[string]string),
		obs:             obs,
	}
	if len(params) > 0 {
		config, err := d.Config("pism_config")
		if err != nil {
			return nil, err
		}
		for _, p := range params {
			v, ok := config[p]
			if !ok {
				continue
			}
			e.Parameters[p] = v
			if a, ok := abbr[p]; ok {
				e.ShortParameters[a] = v
			}
		}
	}
	e.Valid = ValidCells(f.Values.Elements, obs.Values.Elements, f.Mask, obs.Mask, outlier)
	e.RMSE = RMSE(f.Values.Elements, obs.Values.Elements, e.Valid)
	e.Avg = Avg(f.Values.Elements, obs.Values.Elements, e.Valid)
	return e, nil
}

// NormalizedRMSE returns the RMSE as a percentage of the peak-to-peak
// range of the observation.
func (e *Experiment) NormalizedRMSE() float64 {
	return e.RMSE / Ptp(e.obs.Values.Elements) * 100
}

// NormalizedAvg returns the average difference as a percentage of the
// peak-to-peak range of the observation.
func (e *Experiment) NormalizedAvg() float64 {
	return e.Avg / Ptp(e.obs.Values.Elements) * 100
}

// Label returns "k = v" pairs of the short parameters named in keys,
// joined by commas, or the title if keys is empty.
func (e *Experiment) Label(keys []string) string {
	if len(keys) == 0 {
		return e.Title
	}
	var s []string
	for _, k := range keys {
		if v, ok := e.ShortParameters[k]; ok {
			s = append(s, k+" = "+v)
		}
	}
	return strings.Join(s, ", ")
}

// LogStatistics logs the statistics of one experiment.
func (e *Experiment) LogStatistics(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"file":            e.Title,
		"rmse":            fmt.Sprintf("%3.2f %s", e.RMSE, e.Units),
		"rmse_normalized": fmt.Sprintf("%3.2f %%", e.NormalizedRMSE()),
		"avg":             fmt.Sprintf("%3.2f %s", e.Avg, e.Units),
		"avg_normalized":  fmt.Sprintf("%3.2f %%", e.NormalizedAvg()),
	}).Info("statistics")
}

// SortByRMSE returns the experiments sorted by increasing RMSE.
func SortByRMSE(experiments []*Experiment) []*Experiment {
	o := make([]*Experiment, len(experiments))
	copy(o, experiments)
	sort.SliceStable(o, func(i, j int) bool { return o[i].RMSE < o[j].RMSE })
	return o
}

// PrintOverallStatistics logs the experiments ordered from the
// smallest to the largest RMSE.
func PrintOverallStatistics(experiments []*Experiment, log logrus.FieldLogger) {
	for rank, e := range SortByRMSE(experiments) {
		log.WithFields(logrus.Fields{
			"rank":       rank + 1,
			"file":       e.Title,
			"rmse":       e.RMSE,
			"avg":        e.Avg,
			"parameters": e.Parameters,
		}).Info("overall statistics")
	}
}
