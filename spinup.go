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

// PaleoTitle is the PISM_TITLE of paleo-climate initialization runs.
const PaleoTitle = "Greenland Paleo-Climate Initialization"

// spinupGrids are the grids of the distributed spin-up, from coarsest
// to finest. Each grid starts at the save time at the same index of
// spinupSaveTimes and regrids from the previous grid.
var (
	spinupGrids     = []int{9000, 4500, 3600, 1800, 1500, 1200, 900, 600}
	spinupSaveTimes = []int{-125000, -25000, -5000, -1500, -1000, -500, -200, -100}
)

// fttStartTime is the model year at which force-to-thickness starts.
const fttStartTime = -5000

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = Format(x)
	}
	return strings.Join(s, ",")
}

var spinupBeds = []string{"ctrl", "old_bed", "ba01_bed", "970mw_hs", "jak_1985", "cresis"}

func init() {
	registerStudy(&Study{
		Name:        "spinup",
		Description: "paleo-climate initialization from -125 ka to -25 ka",
		defaults: Options{
			Grid:           9000,
			Climate:        "paleo",
			BedType:        "970mW_hs",
			DatasetVersion: "2",
			ProcsPerNode:   4,
		},
		sweep: func() Sweep {
			return Sweep{
				SIAE:    3.0,
				PPQ:     0.6,
				TEFO:    0.02,
				SSAN:    3.25,
				SSAE:    3.0,
				PhiMin:  []interface{}{5.0},
				PhiMax:  []interface{}{40.0},
				TopgMin: []interface{}{-700},
				TopgMax: []interface{}{700},
			}
		},
		plan: paleoSpinup,
	})
	registerStudy(&Study{
		Name:        "spinup-distributed",
		Description: "spin-up with distributed hydrology on successively finer grids",
		defaults: Options{
			Grid:           9000,
			Climate:        "paleo",
			Calving:        "ocean_kill",
			BedType:        "ctrl",
			ForcingType:    "ctrl",
			DatasetVersion: "2",
		},
		sweep: func() Sweep {
			return Sweep{
				SIAE:                3.0,
				PPQ:                 0.6,
				TEFO:                0.02,
				SSAN:                3.25,
				SSAE:                1.0,
				Omega:               []interface{}{1.0},
				Alpha:               []interface{}{1},
				K:                   []interface{}{0.01},
				CalvingThkThreshold: []interface{}{300},
				CalvingK:            []interface{}{1e18},
				PhiMin:              []interface{}{5.0},
				PhiMax:              []interface{}{40.0},
				TopgMin:             []interface{}{-700},
				TopgMax:             []interface{}{700},
			}
		},
		plan: distributedSpinup,
	})
}

// paleoSpinup generates the paleo-climate initialization. Its queue is
// not restricted to the known systems, so the header is built from
// Options.ProcsPerNode.
func paleoSpinup(o Options, s Sweep) (*Plan, error) {
	const (
		study = "spinup"
		hydro = "null"
		dura  = 100000
		start = -125000
		end   = -25000
	)
	err := choices{
		{"climate", o.Climate, []string{"const", "paleo"}},
		{"output format", o.OFormat, oFormats},
		{"output size", o.OSize, oSizes},
		{"bed type", o.BedType, hirhamBeds},
		{"data set version", o.DatasetVersion, []string{"1.1", "1.2", "2"}},
	}.check(study)
	if err != nil {
		return nil, err
	}
	if err = checkGrid(study, o.Grid, studyGrids); err != nil {
		return nil, err
	}
	header, err := InlineHeader(o.Queue, o.Walltime, o.NProcs, o.ProcsPerNode)
	if err != nil {
		return nil, err
	}
	dataname := dataName(o.Grid, o.DatasetVersion, o.BedType)
	etype := fmt.Sprintf("%s_v%s", o.BedType, o.DatasetVersion)

	var jobs []Job
	for _, c := range Product(s.PhiMin, s.PhiMax, s.TopgMin, s.TopgMax) {
		phiMin, phiMax, topgMin, topgMax := c[0], c[1], c[2], c[3]
		name := NewDict()
		name.Set("sia_e", s.SIAE)
		name.Set("ppq", s.PPQ)
		name.Set("tefo", s.TEFO)
		name.Set("ssa_n", s.SSAN)
		name.Set("ssa_e", s.SSAE)
		name.Set("phi_min", phiMin)
		name.Set("phi_max", phiMax)
		name.Set("topg_min", topgMin)
		name.Set("topg_max", topgMax)
		experiment := strings.Join([]string{o.Climate, etype, name.Name()}, "_")
		outfile := fmt.Sprintf("g%dm_m%d_%sa.nc", o.Grid, -end, experiment)

		env := NewDict()
		env.Set("PISM_DO", "")
		env.Set("PISM_OFORMAT", o.OFormat)
		env.Set("PISM_OSIZE", o.OSize)
		env.Set("PISM_CONFIG", "spinup_config.nc")
		env.Set("PARAM_NOAGE", "")
		env.Set("PISM_DATANAME", dataname)
		env.Set("TSSTEP", "1")
		env.Set("EXSTEP", "100")
		env.Set("SIA_E", s.SIAE)
		env.Set("SSA_E", s.SSAE)
		env.Set("SSA_N", s.SSAN)
		env.Set("PARAM_PPQ", s.PPQ)
		env.Set("PARAM_TEFO", s.TEFO)
		env.Set("PARAM_TTPHI", ttphi(phiMin, phiMax, topgMin, topgMax))
		env.Set("PARAM_FTT", "")
		env.Set("PISM_SAVE", "-25000,-11000,-5000,-1000,-500,-200,-100")
		env.Set("STARTEND", fmt.Sprintf("%d,%d", start, end))
		env.Set("DURA", dura)

		jobs = append(jobs, Job{
			Experiment: experiment,
			Script:     fmt.Sprintf("do_g%dm_m%da_%s.sh", o.Grid, end, experiment),
			ScriptBody: header + runCommand(env, "./run.sh", o.NProcs, o.Climate, dura, o.Grid, "hybrid", hydro, outfile) + "\n",
			Env:        jobEnv(experiment, PaleoTitle),
		})
	}
	submit := fmt.Sprintf("submit_g%dm_%s_%s_spinup.sh", o.Grid, o.Climate, etype)
	return newPlan(study, submit, jobs, false)
}

// distributedSpinup generates a spin-up stage on one grid of the
// distributed-hydrology spin-up chain.
func distributedSpinup(o Options, s Sweep) (*Plan, error) {
	const (
		study = "spinup-distributed"
		hydro = "distributed"
		dura  = 10
		end   = 0
	)
	err := choices{
		{"climate", o.Climate, []string{"const", "paleo"}},
		{"calving", o.Calving, []string{"float_kill", "ocean_kill", "eigen_calving"}},
		{"domain", o.Domain, []string{"greenland"}},
		{"output format", o.OFormat, oFormats},
		{"output size", o.OSize, oSizes},
		{"queue", o.Queue, queues},
		{"bed type", o.BedType, spinupBeds},
		{"forcing type", o.ForcingType, []string{"ctrl", "e_age", "ftt", "e_age_ftt"}},
		{"data set version", o.DatasetVersion, []string{"2"}},
	}.check(study)
	if err != nil {
		return nil, err
	}
	if err = checkGrid(study, o.Grid, spinupGrids); err != nil {
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
	idx := indexInt(spinupGrids, o.Grid)
	start := spinupSaveTimes[idx]
	domain := strings.ToLower(o.Domain)
	dataname := dataName(o.Grid, o.DatasetVersion, o.BedType)

	var jobs []Job
	for _, c := range Product(s.Omega, s.Alpha, s.K, s.CalvingThkThreshold, s.CalvingK, s.PhiMin, s.PhiMax, s.TopgMin, s.TopgMax) {
		omega, alpha, k, thk, calvingK := c[0], c[1], c[2], c[3], c[4]
		phiMin, phiMax, topgMin, topgMax := c[5], c[6], c[7], c[8]

		name := spinupName(s, o, thk, calvingK, phiMin, phiMax, topgMin, topgMax)
		name.Set("omega", omega)
		name.Set("alpha", alpha)
		name.Set("k", k)
		experiment := strings.Join([]string{o.Climate, "v" + o.DatasetVersion, name.Name()}, "_")
		outfile := fmt.Sprintf("%s_g%dm_spinup_%s_0.nc", domain, o.Grid, experiment)

		env := NewDict()
		env.Set("PISM_DO", "")
		env.Set("PISM_OFORMAT", o.OFormat)
		env.Set("PISM_OSIZE", o.OSize)
		env.Set("PISM_EXEC", exec)
		env.Set("PISM_SAVE", joinInts(spinupSaveTimes[idx+1:]))
		env.Set("STARTEND", fmt.Sprintf("%d,%d", start, end))
		env.Set("PISM_DATANAME", dataname)
		env.Set("PISM_SURFACE_BC_FILE", baselineSurfaceFile)
		env.Set("PISM_CONFIG", "spinup_config.nc")
		env.Set("TSSTEP", "yearly")
		env.Set("EXSTEP", "100")
		if idx > 0 {
			env.Set("REGRIDVARS", "age,"+regridVars+",thk")
			env.Set("REGRIDFILE", fmt.Sprintf("save_%s_g%dm_spinup_%s_%d.000.nc", domain, spinupGrids[idx-1], experiment, start))
		}
		env.Set("SIA_E", s.SIAE)
		env.Set("SSA_E", s.SSAE)
		env.Set("SSA_N", s.SSAN)
		env.Set("PARAM_NOAGE", "")
		env.Set("PARAM_PPQ", s.PPQ)
		env.Set("PARAM_TEFO", s.TEFO)
		env.Set("PARAM_TTPHI", ttphi(phiMin, phiMax, topgMin, topgMax))
		forcingEnv(env, o, thk, calvingK)
		if o.ForcingType == "ftt" || o.ForcingType == "e_age_ftt" {
			env.Set("PARAM_FTT_STARTTIME", fttStartTime)
		}
		env.Set("PARAM_ALPHA", alpha)
		env.Set("PARAM_K", k)
		env.Set("PARAM_OMEGA", omega)

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
			ScriptBody: header + runCommand(env, "./run.sh", o.NProcs, o.Climate, dura, o.Grid, "hybrid", hydro, outfile) + "\n",
			Post:       fmt.Sprintf("spinup_%s_g%dm_%s_post.sh", domain, o.Grid, experiment),
			PostBody:   post,
			Env:        jobEnv(experiment, Title),
		})
	}
	submit := fmt.Sprintf("submit_%s_g%dm_%s_%s_hirham_relax.sh", domain, o.Grid, o.Climate, o.BedType)
	return newPlan(study, submit, jobs, true)
}

// spinupName returns the experiment name options shared by the
// spin-up studies, ending with the forcing type.
func spinupName(s Sweep, o Options, thk, calvingK, phiMin, phiMax, topgMin, topgMax interface{}) *Dict {
	name := NewDict()
	name.Set("sia_e", s.SIAE)
	name.Set("ppq", s.PPQ)
	name.Set("tefo", s.TEFO)
	name.Set("ssa_n", s.SSAN)
	name.Set("ssa_e", s.SSAE)
	name.Set("phi_min", phiMin)
	name.Set("phi_max", phiMax)
	name.Set("topg_min", topgMin)
	name.Set("topg_max", topgMax)
	name.Set("calving", o.Calving)
	if o.Calving == "eigen_calving" {
		name.Set("calving_k", calvingK)
		name.Set("calving_thk_threshold", thk)
	}
	name.Set("forcing_type", o.ForcingType)
	return name
}

// forcingEnv sets the calving and forcing-type parameters of the
// spin-up studies.
func forcingEnv(env *Dict, o Options, thk, calvingK interface{}) {
	env.Set("PARAM_CALVING", o.Calving)
	if o.Calving == "eigen_calving" {
		env.Set("PARAM_CALVING_THK", thk)
		env.Set("PARAM_CALVING_K", calvingK)
	}
	if o.ForcingType == "e_age" || o.ForcingType == "e_age_ftt" {
		env.Set("PARAM_E_AGE_COUPLING", "yes")
	}
	if o.ForcingType == "ftt" || o.ForcingType == "e_age_ftt" {
		env.Set("PARAM_FTT", "yes")
	}
}

func indexInt(list []int, v int) int {
	for i, l := range list {
		if l == v {
			return i
		}
	}
	return -1
}
