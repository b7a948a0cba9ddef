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

package pismrun

import (
	"fmt"
	"strings"
)

// Jakobshavn regional domain boundaries in EPSG:3413 coordinates [m].
const (
	jakXMin = -280000
	jakXMax = 320000
	jakYMin = -2410000
	jakYMax = -2020000
)

// GenerateDomain returns the PISM executable (including any
// domain-specific arguments) for the named modeling domain.
func GenerateDomain(domain string) (string, error) {
	switch strings.ToLower(domain) {
	case "greenland", "gris":
		return "pismr", nil
	case "jakobshavn":
		return fmt.Sprintf("'pismo -x_range %d,%d -y_range %d,%d -bootstrap'",
			jakXMin, jakXMax, jakYMin, jakYMax), nil
	}
	return "", fmt.Errorf("pismrun: domain %s not recognized", domain)
}

// AcceptedResolutions are the horizontal grid resolutions [m] that
// evenly divide the 150 m base grid.
var AcceptedResolutions = []int{150, 300, 450, 600, 900, 1200, 1500, 1800, 2400, 3000, 3600, 4500, 9000, 18000, 36000}

const (
	mxMax         = 10560
	myMax         = 18240
	resolutionMax = 150
)

// GridDescription returns the grid options for the given horizontal
// resolution in meters.
func GridDescription(resolution int) (*Dict, error) {
	if !containsInt(AcceptedResolutions, resolution) {
		return nil, fmt.Errorf("pismrun: grid resolution %dm not recognized", resolution)
	}
	div := resolution / resolutionMax

	horizontal := NewDict()
	horizontal.Set("Mx", mxMax/div)
	horizontal.Set("My", myMax/div)

	mz, mzb, _ := verticalLevels(resolution)
	vertical := NewDict()
	vertical.Set("Lz", 4000)
	vertical.Set("Lzb", 2000)
	vertical.Set("z_spacing", "equal")
	vertical.Set("Mz", mz)
	vertical.Set("Mzb", mzb)

	return Merge(horizontal, vertical), nil
}

// GridSkip returns the maximum number of time steps PISM may skip
// between energy-balance updates at the given resolution.
func GridSkip(resolution int) int {
	_, _, skip := verticalLevels(resolution)
	return skip
}

func verticalLevels(resolution int) (mz, mzb, skipMax int) {
	switch {
	case resolution < 1200:
		return 401, 41, 200
	case resolution < 4500:
		return 201, 21, 50
	case resolution < 18000:
		return 201, 21, 20
	default:
		return 101, 11, 10
	}
}

// StressBalanceModels are the stress balance solvers supported by
// StressBalance.
var StressBalanceModels = []string{"sia", "ssa+sia", "ssa"}

// StressBalance returns params merged with the options for the chosen
// stress balance model. Sliding models require params to hold
// pseudo_plastic_q, till_effective_fraction_overburden and
// topg_to_phi.
func StressBalance(model string, params *Dict) (*Dict, error) {
	if !containsString(StressBalanceModels, model) {
		return nil, fmt.Errorf("pismrun: stress balance %s not in %v", model, StressBalanceModels)
	}
	sb := NewDict()
	sb.Set("stress_balance", model)
	if model == "sia" {
		return Merge(params, sb), nil
	}
	sb.Set("cfbc", "")
	if model == "ssa+sia" {
		sb.Set("sia_flow_law", "gpbld3")
	}
	sb.Set("pseudo_plastic", "")
	for _, k := range []string{"pseudo_plastic_q", "till_effective_fraction_overburden", "topg_to_phi"} {
		v, ok := params.Get(k)
		if !ok {
			return nil, fmt.Errorf("pismrun: stress balance %s requires parameter %s", model, k)
		}
		sb.Set(k, v)
	}
	sb.Set("tauc_slippery_grounding_lines", "")
	return Merge(params, sb), nil
}

// TimeRange optionally bounds a time series. A nil TimeRange means the
// whole run.
type TimeRange struct {
	Start, End int
}

func timeSeriesTimes(step string, r *TimeRange) string {
	if step == "" {
		step = "yearly"
	}
	if r == nil {
		return step
	}
	return fmt.Sprintf("%d:%s:%d", r.Start, step, r.End)
}

// SpatialTS returns the options for writing spatial time series
// (extra files) of the variables vars for a run writing outfile.
// An empty step means yearly.
func SpatialTS(outfile, vars, step string, r *TimeRange, split bool) *Dict {
	d := NewDict()
	d.Set("extra_file", "ex_"+outfile)
	d.Set("extra_vars", vars)
	d.Set("extra_times", timeSeriesTimes(step, r))
	if split {
		d.Set("extra_split", "")
	}
	return d
}

// ScalarTS returns the options for writing scalar time series
// for a run writing outfile. An empty step means yearly.
func ScalarTS(outfile, step string, r *TimeRange) *Dict {
	d := NewDict()
	d.Set("ts_file", "ts_"+outfile)
	d.Set("ts_times", timeSeriesTimes(step, r))
	return d
}

func containsInt(list []int, v int) bool {
	for _, l := range list {
		if l == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, l := range list {
		if l == v {
			return true
		}
	}
	return false
}
