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

var initGrids = []int{18000, 9000, 4500, 3600, 1800, 1500, 1200, 900, 600, 450, 300, 150}

// initExtraVars are the variables written to the spatial time series
// of a straight initialization run.
const initExtraVars = "climatic_mass_balance_cumulative,tempsurf,diffusivity,temppabase,bmeltvelsurf_mag,mask,thk,topg,usurf,taud_mag,velsurf,climatic_mass_balance,climatic_mass_balance_original,velbase_mag,tauc,taub_mag"

func init() {
	registerStudy(&Study{
		Name:        "init-straight",
		Description: "initialization in a single run from -125 ka to the present",
		defaults: Options{
			Grid:           9000,
			Domain:         "gris",
			Climate:        "paleo",
			Calving:        "ocean_kill",
			BedType:        "ctrl",
			ForcingType:    "ctrl",
			StressBalance:  "ssa+sia",
			DatasetVersion: "2",
		},
		sweep: func() Sweep {
			return Sweep{
				SIAE:                3.0,
				PPQ:                 0.6,
				TEFO:                0.02,
				SSAN:                3.25,
				SSAE:                1.0,
				CalvingThkThreshold: []interface{}{300},
				CalvingK:            []interface{}{1e18},
				PhiMin:              []interface{}{5.0},
				PhiMax:              []interface{}{40.0},
				TopgMin:             []interface{}{-700},
				TopgMax:             []interface{}{700},
			}
		},
		plan: initStraight,
	})
}

// initStraight generates the straight initialization. The PISM options
// are passed to the run script in PISM_PARAMS instead of being built
// by the script itself.
func initStraight(o Options, s Sweep) (*Plan, error) {
	const (
		study = "init-straight"
		hydro = "null"
		dura  = 10
		start = -125000
		end   = 0
	)
	err := choices{
		{"climate", o.Climate, []string{"const", "paleo"}},
		{"calving", o.Calving, []string{"float_kill", "ocean_kill", "eigen_calving"}},
		{"domain", o.Domain, []string{"gris"}},
		{"output format", o.OFormat, oFormats},
		{"output size", o.OSize, oSizes},
		{"queue", o.Queue, queues},
		{"bed type", o.BedType, hirhamBeds},
		{"forcing type", o.ForcingType, []string{"ctrl", "e_age", "ftt", "e_age_ftt"}},
		{"stress balance", o.StressBalance, StressBalanceModels},
		{"data set version", o.DatasetVersion, []string{"2"}},
	}.check(study)
	if err != nil {
		return nil, err
	}
	if err = checkGrid(study, o.Grid, initGrids); err != nil {
		return nil, err
	}
	exec, err := GenerateDomain(o.Domain)
	if err != nil {
		return nil, err
	}
	header, err := Header(o.System, o.NProcs, o.Walltime, o.Queue)
	if err != nil {
		return nil, err
	}
	bedDataSet, err := VersionDataSet(o.DatasetVersion)
	if err != nil {
		return nil, err
	}
	grid, err := GridDescription(o.Grid)
	if err != nil {
		return nil, err
	}
	domain := strings.ToLower(o.Domain)
	dataname := dataName(o.Grid, o.DatasetVersion, o.BedType)
	pismDo := ""
	if o.System == "debug" {
		pismDo = "echo"
	}
	r := &TimeRange{Start: start, End: end}

	var jobs []Job
	for _, c := range Product(s.CalvingThkThreshold, s.CalvingK, s.PhiMin, s.PhiMax, s.TopgMin, s.TopgMax) {
		thk, calvingK, phiMin, phiMax, topgMin, topgMax := c[0], c[1], c[2], c[3], c[4], c[5]

		name := spinupName(s, o, thk, calvingK, phiMin, phiMax, topgMin, topgMax)
		experiment := strings.Join([]string{o.Climate, "v" + o.DatasetVersion, o.BedType, name.Name()}, "_")
		outfile := fmt.Sprintf("%s_g%dm_spinup_straight_%s_0.nc", domain, o.Grid, experiment)

		general := NewDict()
		general.Set("o_format", o.OFormat)
		general.Set("o_size", o.OSize)
		sbParams := NewDict()
		sbParams.Set("sia_e", s.SIAE)
		sbParams.Set("ssa_e", s.SSAE)
		sbParams.Set("ssa_n", s.SSAN)
		sbParams.Set("pseudo_plastic_q", s.PPQ)
		sbParams.Set("till_effective_fraction_overburden", s.TEFO)
		sbParams.Set("topg_to_phi", ttphi(phiMin, phiMax, topgMin, topgMax))
		sb, err := StressBalance(o.StressBalance, sbParams)
		if err != nil {
			return nil, err
		}
		params := Merge(general, grid, sb,
			SpatialTS(outfile, initExtraVars, "100", r, false),
			ScalarTS(outfile, "yearly", r))

		env := NewDict()
		env.Set("PISM_DO", pismDo)
		env.Set("PISM_EXEC", exec)
		env.Set("PISM_PARAMS", "'"+params.Flags()+"'")
		env.Set("PISM_SAVE", joinInts(spinupSaveTimes[1:]))
		env.Set("STARTEND", fmt.Sprintf("%d,%d", start, end))
		env.Set("PISM_DATANAME", dataname)
		env.Set("PISM_SURFACE_BC_FILE", baselineSurfaceFile)
		env.Set("PISM_CONFIG", "spinup_config.nc")
		env.Set("TSSTEP", "yearly")
		env.Set("EXSTEP", "100")
		env.Set("PARAM_NOAGE", "")
		forcingEnv(env, o, thk, calvingK)

		post, err := PostScript(PostSpec{
			Dir:        fmt.Sprintf("%dm_%s_%s/processed/%s", o.Grid, o.Climate, o.BedType, domain),
			Files:      []PostFile{{Name: outfile}},
			BedDataSet: bedDataSet,
			Grid:       o.Grid,
			Capitalize: true,
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{
			Experiment: experiment,
			Script:     fmt.Sprintf("spinup_%s_g%dm_%s.sh", domain, o.Grid, experiment),
			ScriptBody: header + runCommand(env, "./run_main.sh", o.NProcs, o.Climate, dura, hydro, outfile) + "\n",
			Post:       fmt.Sprintf("spinup_%s_g%dm_%s_post.sh", domain, o.Grid, experiment),
			PostBody:   post,
			Env:        jobEnv(experiment, Title),
		})
	}
	submit := fmt.Sprintf("submit_%s_g%dm_%s_%s.sh", domain, o.Grid, o.Climate, o.BedType)
	return newPlan(study, submit, jobs, true)
}
