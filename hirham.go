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

// Hindcast era.
const (
	eraStart = 1989
	eraEnd   = 2011
)

var hirhamBeds = []string{"ctrl", "old_bed", "ba01_bed", "970mW_hs", "jak_1985", "cresis"}

func hirhamSweep() Sweep {
	return Sweep{
		SIAE:                1.25,
		PPQ:                 0.6,
		TEFO:                0.02,
		SSAN:                3.25,
		SSAE:                1.0,
		CalvingThkThreshold: []interface{}{100, 300, 500},
		CalvingK:            []interface{}{1e15, 1e18},
		PhiMin:              []interface{}{5.0},
		PhiMax:              []interface{}{40.0},
		TopgMin:             []interface{}{-700},
		TopgMax:             []interface{}{700},
	}
}

var hirhamDefaults = Options{
	Grid:           1500,
	Calving:        "eigen_calving",
	Ocean:          "const_ctrl",
	BedType:        "ctrl",
	DatasetVersion: "2_1985",
}

func init() {
	registerStudy(&Study{
		Name:            "hirham",
		Description:     "relaxation run followed by a 1989-2011 hindcast",
		NeedsRegridFile: true,
		defaults:        hirhamDefaults,
		sweep:           hirhamSweep,
		plan:            func(o Options, s Sweep) (*Plan, error) { return hirham(o, s, false) },
	})
	registerStudy(&Study{
		Name:            "hirham-relax",
		Description:     "relaxation run with 1989 baseline forcing",
		NeedsRegridFile: true,
		defaults:        hirhamDefaults,
		sweep:           hirhamSweep,
		plan:            func(o Options, s Sweep) (*Plan, error) { return hirham(o, s, true) },
	})
}

// calvingEnv sets the calving parameters for the chosen calving model.
func calvingEnv(env *Dict, calving string, thk, k interface{}) {
	env.Set("PARAM_CALVING", calving)
	if calving == "eigen_calving" {
		env.Set("PARAM_CALVING_K", k)
	}
	if calving == "eigen_calving" || calving == "thickness_calving" {
		env.Set("PARAM_CALVING_THK", thk)
	}
}

// hirham generates the relaxation and hindcast study. If relaxOnly is
// true, only the relaxation runs are generated.
func hirham(o Options, s Sweep, relaxOnly bool) (*Plan, error) {
	const (
		climate = "const"
		hydro   = "null"
		dura    = 20
	)
	study := "hirham"
	calvings := []string{"float_kill", "ocean_kill", "eigen_calving", "thickness_calving", "ok_eigen_calving"}
	if relaxOnly {
		study = "hirham-relax"
		calvings = calvings[:3]
	}
	err := choices{
		{"calving", o.Calving, calvings},
		{"ocean", o.Ocean, []string{"const_ctrl", "const_m20"}},
		{"domain", o.Domain, []string{"greenland", "jakobshavn"}},
		{"output format", o.OFormat, oFormats},
		{"output size", o.OSize, oSizes},
		{"queue", o.Queue, queues},
		{"bed type", o.BedType, hirhamBeds},
		{"data set version", o.DatasetVersion, []string{"2_1985"}},
	}.check(study)
	if err != nil {
		return nil, err
	}
	if err = checkGrid(study, o.Grid, studyGrids); err != nil {
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

	relaxCalving, hindcastCalving := o.Calving, o.Calving
	if o.Calving == "ok_eigen_calving" {
		relaxCalving, hindcastCalving = "ocean_kill", "eigen_calving"
	}
	domain := strings.ToLower(o.Domain)
	dataname := dataName(o.Grid, o.DatasetVersion, o.BedType)
	oceanFile := fmt.Sprintf("ocean_forcing_%dm_%d-%d_v%s_%s_%s", o.Grid, eraStart, eraEnd, o.DatasetVersion, o.BedType, o.Ocean)
	version := "v" + o.DatasetVersion
	if relaxOnly {
		// Relaxation-only experiments are labeled by the bare version.
		version = o.DatasetVersion
	}

	var jobs []Job
	for _, c := range Product(s.CalvingThkThreshold, s.CalvingK, s.PhiMin, s.PhiMax, s.TopgMin, s.TopgMax) {
		thk, k, phiMin, phiMax, topgMin, topgMax := c[0], c[1], c[2], c[3], c[4], c[5]

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
		name.Set("hydro", hydro)
		name.Set("calving", o.Calving)
		switch o.Calving {
		case "eigen_calving", "ok_eigen_calving":
			name.Set("calving_k", k)
			name.Set("calving_thk_threshold", thk)
		case "thickness_calving":
			name.Set("calving_thk_threshold", thk)
		}
		name.Set("ocean", o.Ocean)
		experiment := strings.Join([]string{climate, o.BedType, version, name.Name()}, "_")

		relaxOut := fmt.Sprintf("%s_g%dm_%s_%da.nc", domain, o.Grid, experiment, dura)
		env := NewDict()
		env.Set("PISM_DO", "")
		env.Set("PISM_OFORMAT", o.OFormat)
		env.Set("PISM_OSIZE", o.OSize)
		env.Set("PISM_EXEC", exec)
		env.Set("PISM_DATANAME", dataname)
		env.Set("PISM_SURFACE_BC_FILE", baselineSurfaceFile)
		env.Set("PISM_OCEAN_BCFILE", oceanFile+"_1989_baseline.nc")
		env.Set("PISM_CONFIG", "hindcast_config.nc")
		env.Set("REGRIDFILE", o.RegridFile)
		env.Set("TSSTEP", "daily")
		env.Set("EXSTEP", "yearly")
		env.Set("REGRIDVARS", regridVars)
		env.Set("SIA_E", s.SIAE)
		env.Set("SSA_E", s.SSAE)
		env.Set("SSA_N", s.SSAN)
		env.Set("PARAM_NOAGE", "foo")
		env.Set("PARAM_PPQ", s.PPQ)
		env.Set("PARAM_TEFO", s.TEFO)
		env.Set("PARAM_TTPHI", ttphi(phiMin, phiMax, topgMin, topgMax))
		env.Set("PARAM_FTT", "")
		if relaxOnly {
			env.Set("PARAM_CALVING", relaxCalving)
			if relaxCalving == "eigen_calving" {
				env.Set("PARAM_CALVING_THK", thk)
				env.Set("PARAM_CALVING_K", k)
			}
		} else {
			calvingEnv(env, relaxCalving, thk, k)
		}
		body := header + runCommand(env, "./run.sh", o.NProcs, climate, dura, o.Grid, "hybrid", hydro, relaxOut)

		post := PostSpec{
			Dir:        fmt.Sprintf("%dm_%s_%s/processed/%s", o.Grid, climate, o.BedType, domain),
			Files:      []PostFile{{Name: relaxOut}},
			BedDataSet: bedDataSet,
			Grid:       o.Grid,
			Capitalize: true,
		}
		if relaxOnly {
			body += "\n"
			post.NcpdqFlag = "-O"
		} else {
			hindcastOut := fmt.Sprintf("%s_g%dm_%s_%d-%d.nc", domain, o.Grid, experiment, eraStart, eraEnd)
			env.Set("EXSTEP", "monthly")
			env.Set("REGRIDFILE", relaxOut)
			env.Set("REGRIDVARS", regridVars+",thk")
			env.Set("PISM_TIMEFILE", monthlySurfaceFile)
			env.Set("PISM_SURFACE_BCFILE", monthlySurfaceFile)
			env.Set("PISM_OCEAN_BCFILE", oceanFile+".nc")
			calvingEnv(env, hindcastCalving, thk, k)
			body += "\n\n" + runCommand(env, "./run.sh", o.NProcs, climate, dura, o.Grid, "hybrid", hydro, hindcastOut) + "\n"
			post.Files = append(post.Files, PostFile{Name: hindcastOut, Extra: true})
		}
		postBody, err := PostScript(post)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{
			Experiment: experiment,
			Script:     fmt.Sprintf("do_%s_g%dm_%s.sh", domain, o.Grid, experiment),
			ScriptBody: body,
			Post:       fmt.Sprintf("do_%s_g%dm_%s_post.sh", domain, o.Grid, experiment),
			PostBody:   postBody,
			Env:        jobEnv(experiment, Title),
		})
	}
	suffix := "hirham"
	if relaxOnly {
		suffix = "hirham_relax"
	}
	submit := fmt.Sprintf("submit_%s_g%dm_%s_%s_%s.sh", domain, o.Grid, climate, o.BedType, suffix)
	return newPlan(study, submit, jobs, true)
}
