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
	"strings"
	"testing"
)

func TestHeader(t *testing.T) {
	for _, test := range []struct {
		system, queue string
		cores         int
		want          string
	}{
		{"debug", "", 0, ""},
		{"pacman", "standard_4", 64, "\n#!/bin/bash\n#PBS -q standard_4\n#PBS -l walltime=12:00:00\n#PBS -l nodes=16:ppn=4\n#PBS -j oe\n\ncd $PBS_O_WORKDIR\n\n"},
		{"fish", "standard", 30, "\n#!/bin/bash\n#PBS -q standard\n#PBS -l walltime=12:00:00\n#PBS -l nodes=2:ppn=12\n#PBS -j oe\n\ncd $PBS_O_WORKDIR\n\n"},
		{"pleiades", "long", 40, "\n#PBS -S /bin/bash\n#PBS -N cfd\n#PBS -l walltime=12:00:00\n#PBS -m e\n#PBS -q long\n#PBS -lselect=2:ncpus=20:mpiprocs=20:model=ivy\n#PBS -j oe\n\ncd $PBS_O_WORKDIR\n\n"},
	} {
		have, err := Header(test.system, test.cores, "12:00:00", test.queue)
		if err != nil {
			t.Fatalf("%s: %v", test.system, err)
		}
		if have != test.want {
			t.Errorf("%s:\nhave %q\nwant %q", test.system, have, test.want)
		}
	}
}

func TestHeaderErrors(t *testing.T) {
	for _, test := range []struct {
		system, queue string
		cores         int
	}{
		{"summit", "standard_4", 64},
		{"pacman", "gpu", 64},
		{"fish", "gpu", 0},
	} {
		if _, err := Header(test.system, test.cores, "1:00:00", test.queue); err == nil {
			t.Errorf("%s/%s/%d: expected an error", test.system, test.queue, test.cores)
		}
	}
}

func TestInlineHeader(t *testing.T) {
	have, err := InlineHeader("long", "96:00:00", 64, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := "#!/bin/bash\n\n#PBS -q long\n#PBS -l walltime=96:00:00\n#PBS -l nodes=16:ppn=4\n#PBS -j oe\n\ncd $PBS_O_WORKDIR\n\n"
	if have != want {
		t.Errorf("have %q, want %q", have, want)
	}
	if _, err := InlineHeader("long", "1:00:00", 64, 0); err == nil {
		t.Error("expected an error for zero processors per node")
	}
}

func TestPostScript(t *testing.T) {
	post, err := PostScript(PostSpec{
		Dir:        "1500m_const_ctrl/processed/greenland",
		Files:      []PostFile{{Name: "a.nc"}, {Name: "b.nc", Extra: true}},
		BedDataSet: "MO14 2015-04-27",
		Grid:       1500,
		Capitalize: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	const dir = "1500m_const_ctrl/processed/greenland"
	for _, want := range []string{
		postHeader + " if [ ! -d " + dir + " ]; then mkdir -p " + dir + "; fi\n\nif [ -f a.nc ]; then\n",
		"  rm -f tmp_a.nc " + dir + "/a.nc\n",
		"  ncks -v enthalpy,litho_temp -x a.nc tmp_a.nc\n  sh add_epsg3413_mapping.sh tmp_a.nc\n",
		"  ncpdq -o --64 -a time,y,x tmp_a.nc " + dir + "/a.nc\n",
		`  ncap2 -O -s "uflux=ubar*thk; vflux=vbar*thk; velshear_mag=velsurf_mag-velbase_mag; where(thk<50) {velshear_mag=-2e9; velbase_mag=-2e9; velsurf_mag=-2e9; flux_mag=-2e9;}; sliding_r = velbase_mag/velsurf_mag; tau_r = tauc/(taud_mag+1); tau_rel=(tauc-taud_mag)/(1+taud_mag);" ` + dir + "/a.nc " + dir + "/a.nc\n",
		`  ncatted -a bed_data_set,run_stats,o,c,"MO14 2015-04-27" -a grid_dx_meters,run_stats,o,f,1500 -a grid_dy_meters,run_stats,o,f,1500 -a long_name,uflux,o,c,"Vertically-integrated horizontal flux of ice in the X direction" -a long_name,vflux,o,c,"Vertically-integrated horizontal flux of ice in the Y direction"`,
		"  rm -f tmp_b.nc tmp_ex_b.nc " + dir + "/b.nc " + dir + "/ex_b.nc\n",
		"  ncks -v enthalpy,litho_temp -x b.nc tmp_b.nc\n  ncks -O --64 ex_b.nc " + dir + "/ex_b.nc\n  sh add_epsg3413_mapping.sh tmp_b.nc\n",
	} {
		if !strings.Contains(post, want) {
			t.Errorf("post script does not contain %q:\n%s", want, post)
		}
	}
	if !strings.HasSuffix(post, dir+"/b.nc\nfi\n\n") {
		t.Errorf("post script has the wrong ending:\n%s", post)
	}
	if n := strings.Count(post, "fi\n\n"); n != 3 {
		t.Errorf("have %d blocks, want 3 (mkdir and two files)", n)
	}

	lower, err := PostScript(PostSpec{Dir: "d", Files: []PostFile{{Name: "a.nc"}}, Ncap2Flag: "-o", NcpdqFlag: "-O"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"vertically-integrated horizontal flux of ice in the x direction",
		"  ncap2 -o -s",
		"  ncpdq -O --64",
	} {
		if !strings.Contains(lower, want) {
			t.Errorf("post script does not contain %q", want)
		}
	}
}

func TestSubmitScript(t *testing.T) {
	jobs := []Job{
		{Script: "a.sh", Post: "a_post.sh"},
		{Script: "b.sh", Post: "b_post.sh"},
		{Script: "a.sh", Post: "a_post.sh"},
	}
	have, err := SubmitScript(jobs, true)
	if err != nil {
		t.Fatal(err)
	}
	want := "#!/bin/bash\nJOBID=$(qsub a.sh)\nqsub -W depend=afterok:${JOBID} a_post.sh\nJOBID=$(qsub b.sh)\nqsub -W depend=afterok:${JOBID} b_post.sh\n"
	if have != want {
		t.Errorf("have %q, want %q", have, want)
	}
	have, err = SubmitScript(jobs, false)
	if err != nil {
		t.Fatal(err)
	}
	want = "#!/bin/bash\nJOBID=$(qsub a.sh)\nJOBID=$(qsub b.sh)\n"
	if have != want {
		t.Errorf("no dependency: have %q, want %q", have, want)
	}
}

func TestBedDataSet(t *testing.T) {
	for etype, want := range map[string]string{
		"ctrl_v2":      "MO14 2015-04-27",
		"cresis_v2":    "MO14+CReSIS 2015-04-27",
		"ctrl_v1.2":    "MO14 2014-11-19",
		"ctrl_v1.1":    "MO14 2014-06-26",
		"old_bed_v1.2": "BA01",
		"searise":      "SR13",
	} {
		have, err := BedDataSet(etype)
		if err != nil {
			t.Fatal(err)
		}
		if have != want {
			t.Errorf("%s: have %q, want %q", etype, have, want)
		}
	}
	if _, err := BedDataSet("jak_1985_v2"); err == nil {
		t.Error("expected an error for an unknown etype")
	}
	if _, err := VersionDataSet("1.1"); err == nil {
		t.Error("expected an error for an unknown version")
	}
}
